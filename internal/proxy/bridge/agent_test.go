package bridge_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ksutools/portalgate/internal/proxy"
	"github.com/ksutools/portalgate/internal/proxy/bridge"
	"github.com/ksutools/portalgate/internal/testutil"
)

// The agent dials the gateway, executes the tasks it is sent, and echoes the
// request ID on each result.
func TestAgent_Run_ExecutesTasks(t *testing.T) {
	t.Parallel()

	results := make(chan bridge.Result, 1)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		if err := conn.WriteJSON(&bridge.Task{
			RequestID: "task-1",
			Method:    "GET",
			URL:       "http://upstream.example/data",
			TimeoutMS: 1000,
		}); err != nil {
			t.Errorf("write task: %v", err)
			return
		}

		var res bridge.Result
		if err := conn.ReadJSON(&res); err != nil {
			t.Errorf("read result: %v", err)
			return
		}
		results <- res
	}))
	defer ts.Close()

	exec := &testutil.DummyExecutor{
		Responses: map[string]*proxy.Envelope{
			"http://upstream.example/data": {OK: true, Status: 200, Body: `{"v":1}`},
		},
	}
	cfg := bridge.DefaultAgentConfig()
	cfg.GatewayURL = "ws" + strings.TrimPrefix(ts.URL, "http")
	agent := bridge.NewAgent(cfg, exec, &testutil.DummyLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	select {
	case res := <-results:
		if res.RequestID != "task-1" {
			t.Errorf("expected request id echoed, got %q", res.RequestID)
		}
		if res.Body != `{"v":1}` {
			t.Errorf("expected executor body, got %q", res.Body)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("agent never returned a result")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("agent did not stop on context cancellation")
	}
}

func TestTask_DescriptorRunsOnAgentLocalPath(t *testing.T) {
	t.Parallel()
	noFollow := false
	task := &bridge.Task{
		RequestID:       "r",
		Method:          "POST",
		URL:             "https://portal.example",
		Headers:         map[string]string{"x-id-token": "tok"},
		Body:            "b",
		TimeoutMS:       123,
		FollowRedirects: &noFollow,
	}

	d := task.Descriptor()
	if d.Mode != proxy.ModeLocal {
		t.Errorf("expected agent-side tasks to run locally, got %q", d.Mode)
	}
	if d.Method != "POST" || d.URL != task.URL || d.Body != "b" || d.TimeoutMS != 123 {
		t.Errorf("descriptor lost fields: %+v", d)
	}
	if d.ShouldFollowRedirects() {
		t.Error("expected redirect policy preserved")
	}
}
