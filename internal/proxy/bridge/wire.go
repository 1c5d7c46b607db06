// Package bridge carries remote-mode requests between the gateway and the
// privileged requester agent over a websocket, correlating each asynchronous
// result back to its waiting caller by request ID.
package bridge

import "github.com/ksutools/portalgate/internal/proxy"

// Task is one request handed to the agent, tagged with the correlation ID the
// result must echo back.
type Task struct {
	RequestID       string            `json:"requestId"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Headers         map[string]string `json:"headers,omitempty"`
	Body            string            `json:"body,omitempty"`
	TimeoutMS       int64             `json:"timeoutMs,omitempty"`
	FollowRedirects *bool             `json:"followRedirects,omitempty"`
}

// Result is the agent's answer for one task.
type Result struct {
	RequestID string `json:"requestId"`
	proxy.Envelope
}

func taskFromDescriptor(id string, d *proxy.Descriptor) *Task {
	return &Task{
		RequestID:       id,
		Method:          d.Method,
		URL:             d.URL,
		Headers:         d.Headers,
		Body:            d.Body,
		TimeoutMS:       d.TimeoutMS,
		FollowRedirects: d.FollowRedirects,
	}
}

// Descriptor rebuilds the request on the agent side. The agent always runs
// tasks with its own in-process executor.
func (t *Task) Descriptor() *proxy.Descriptor {
	return &proxy.Descriptor{
		Mode:            proxy.ModeLocal,
		Method:          t.Method,
		URL:             t.URL,
		Headers:         t.Headers,
		Body:            t.Body,
		TimeoutMS:       t.TimeoutMS,
		FollowRedirects: t.FollowRedirects,
	}
}
