package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ksutools/portalgate/internal/logging"
	"github.com/ksutools/portalgate/internal/proxy"
)

var errNoAgent = errors.New("no requester agent connected")

// AgentConfig configures the requester agent.
type AgentConfig struct {
	// GatewayURL is the websocket endpoint of the gateway, e.g.
	// ws://127.0.0.1:8964/bridge.
	GatewayURL string

	// ReconnectMin/ReconnectMax bound the backoff between dial attempts.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// DefaultAgentConfig returns an AgentConfig with sensible defaults, minus
// the gateway URL which has no default.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		ReconnectMin: time.Second,
		ReconnectMax: 30 * time.Second,
	}
}

// Agent is the privileged side of the bridge. It dials the gateway, reads
// tasks off the websocket, runs each with its own executor, and writes the
// results back tagged with the originating request ID.
type Agent struct {
	cfg    AgentConfig
	exec   proxy.Executor
	logger logging.Logger
	dialer *websocket.Dialer
}

// NewAgent creates an agent that executes tasks with exec.
func NewAgent(cfg AgentConfig, exec proxy.Executor, logger logging.Logger) *Agent {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = 30 * time.Second
	}
	return &Agent{
		cfg:    cfg,
		exec:   exec,
		logger: logger.With(logging.Field{Key: "component", Value: "bridge.agent"}),
		dialer: websocket.DefaultDialer,
	}
}

// Run keeps the agent connected to the gateway until ctx is done, redialing
// with backoff after any connection loss.
func (a *Agent) Run(ctx context.Context) error {
	backoff := a.cfg.ReconnectMin
	for {
		conn, _, err := a.dialer.DialContext(ctx, a.cfg.GatewayURL, nil)
		if err != nil {
			a.logger.Warn("dial gateway failed",
				logging.Field{Key: "url", Value: a.cfg.GatewayURL},
				logging.Field{Key: "error", Value: err.Error()},
				logging.Field{Key: "retry_in", Value: backoff.String()})
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > a.cfg.ReconnectMax {
				backoff = a.cfg.ReconnectMax
			}
			continue
		}

		a.logger.Info("connected to gateway",
			logging.Field{Key: "url", Value: a.cfg.GatewayURL})
		backoff = a.cfg.ReconnectMin

		a.serve(ctx, conn)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// serve reads tasks until the connection drops or ctx ends. Tasks run
// concurrently; the write side is serialized because websocket connections
// allow one writer at a time.
func (a *Agent) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	// Unblock the read loop when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	var writeMu sync.Mutex
	for {
		var task Task
		if err := conn.ReadJSON(&task); err != nil {
			a.logger.Info("gateway connection closed",
				logging.Field{Key: "error", Value: err.Error()})
			return
		}

		go func(task Task) {
			env := a.exec.Execute(ctx, task.Descriptor())
			res := Result{RequestID: task.RequestID, Envelope: *env}

			writeMu.Lock()
			err := conn.WriteJSON(&res)
			writeMu.Unlock()
			if err != nil {
				a.logger.Warn("submit result failed",
					logging.Field{Key: "requestId", Value: task.RequestID},
					logging.Field{Key: "error", Value: err.Error()})
			}
		}(task)
	}
}
