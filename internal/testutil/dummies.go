// Package testutil provides shared test doubles for use across package
// tests. All dummies implement the corresponding interfaces from the
// production code, allowing injection into components under test without
// real I/O or side effects.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/ksutools/portalgate/internal/logging"
	"github.com/ksutools/portalgate/internal/proxy"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ─── Executor ──────────────────────────────────────────────────────────

// DummyExecutor implements proxy.Executor with scripted envelopes per URL.
// Unscripted URLs get a 200 envelope with body "ok:<url>". Set Fail to force
// a transport-failure envelope for every request.
type DummyExecutor struct {
	ResponseDelay time.Duration
	Fail          bool
	Responses     map[string]*proxy.Envelope

	mu       sync.Mutex
	Requests []*proxy.Descriptor
}

func (d *DummyExecutor) Execute(ctx context.Context, req *proxy.Descriptor) *proxy.Envelope {
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return proxy.Failure(ctx.Err().Error())
		}
	}

	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.Fail {
		return proxy.Failure("dummy transport failure")
	}
	if env, ok := d.Responses[req.URL]; ok {
		return env
	}
	return &proxy.Envelope{
		OK:      true,
		Status:  200,
		Headers: map[string]string{},
		Body:    "ok:" + req.URL,
	}
}

// RequestCount returns how many requests the executor has seen.
func (d *DummyExecutor) RequestCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Requests)
}

// JSONEnvelope builds a 200 envelope with a JSON body.
func JSONEnvelope(body string) *proxy.Envelope {
	return &proxy.Envelope{
		OK:      true,
		Status:  200,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
}

// ─── Clock ─────────────────────────────────────────────────────────────

// FakeClock is a settable clock for freshness tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
