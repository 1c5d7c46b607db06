package proxy

import (
	"strings"
	"time"
)

// Mode selects which execution environment performs a request.
type Mode string

const (
	// ModeLocal executes the request in-process.
	ModeLocal Mode = "local"
	// ModeRemote hands the request to the privileged requester agent.
	ModeRemote Mode = "remote"
)

// DefaultTimeout applies when a descriptor carries no timeout of its own.
const DefaultTimeout = 30 * time.Second

// ErrorTimeout is the envelope error string for a request that was given up on.
const ErrorTimeout = "timeout"

// Descriptor describes one HTTP request to be executed. It is immutable once
// submitted; callers must not reuse or mutate a descriptor after Execute.
type Descriptor struct {
	Mode    Mode              `json:"mode"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
	// TimeoutMS bounds the whole attempt. Zero means DefaultTimeout.
	TimeoutMS int64 `json:"timeoutMs,omitempty"`
	// FollowRedirects defaults to true when nil.
	FollowRedirects *bool `json:"followRedirects,omitempty"`
}

// Timeout returns the effective timeout for the descriptor.
func (d *Descriptor) Timeout() time.Duration {
	if d.TimeoutMS <= 0 {
		return DefaultTimeout
	}
	return time.Duration(d.TimeoutMS) * time.Millisecond
}

// ShouldFollowRedirects resolves the redirect policy, defaulting to follow.
func (d *Descriptor) ShouldFollowRedirects() bool {
	return d.FollowRedirects == nil || *d.FollowRedirects
}

// Envelope is the uniform outcome of attempting a request. It is always
// returned, never raised: transport problems are reported with Status 0 and
// an error string, and a non-2xx HTTP response is still a transport-level
// success that callers interpret themselves.
type Envelope struct {
	OK      bool              `json:"ok"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
	Error   string            `json:"error,omitempty"`
}

// Failure builds the envelope for an attempt that produced no HTTP response.
func Failure(msg string) *Envelope {
	return &Envelope{
		OK:      false,
		Status:  0,
		Headers: map[string]string{},
		Error:   msg,
	}
}

// HeaderGet looks up a response header case-insensitively.
func (e *Envelope) HeaderGet(name string) string {
	for k, v := range e.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
