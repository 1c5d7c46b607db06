package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ksutools/portalgate/internal/logging"
	"github.com/ksutools/portalgate/internal/proxy"
)

// Hub is the gateway side of the bridge. It implements proxy.Executor for
// remote-mode descriptors: each submission mints a correlation ID, sends the
// tagged task to the connected agent, and parks the caller until a matching
// result arrives or the descriptor's timeout elapses.
//
// For any one ID at most one result is ever accepted. A result arriving after
// the caller gave up is dropped silently.
type Hub struct {
	logger logging.Logger

	mu      sync.Mutex
	pending map[string]chan *proxy.Envelope

	connMu sync.Mutex
	conn   *websocket.Conn
}

// NewHub creates an empty hub with no agent attached.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		logger:  logger.With(logging.Field{Key: "component", Value: "bridge.hub"}),
		pending: make(map[string]chan *proxy.Envelope),
	}
}

// Execute implements proxy.Executor over the bridge.
func (h *Hub) Execute(ctx context.Context, d *proxy.Descriptor) *proxy.Envelope {
	if d == nil || d.URL == "" {
		return proxy.Failure("empty request descriptor")
	}

	id := uuid.NewString()
	ch := make(chan *proxy.Envelope, 1)

	h.mu.Lock()
	h.pending[id] = ch
	h.mu.Unlock()
	// The entry must be gone once this caller returns, whatever the outcome;
	// a result correlating to a forgotten ID is then a no-op in Fulfill.
	defer h.discard(id)

	if err := h.send(taskFromDescriptor(id, d)); err != nil {
		h.logger.Warn("bridge submit failed",
			logging.Field{Key: "requestId", Value: id},
			logging.Field{Key: "error", Value: err.Error()})
		return proxy.Failure("agent unreachable: " + err.Error())
	}

	timer := time.NewTimer(d.Timeout())
	defer timer.Stop()

	select {
	case env := <-ch:
		return env
	case <-timer.C:
		h.logger.Warn("remote request timed out locally",
			logging.Field{Key: "requestId", Value: id},
			logging.Field{Key: "url", Value: d.URL})
		return proxy.Failure(proxy.ErrorTimeout)
	case <-ctx.Done():
		return proxy.Failure(ctx.Err().Error())
	}
}

// Fulfill delivers a result to the caller waiting on its request ID. It
// reports whether anyone was still waiting; a duplicate or late result
// returns false and has no other effect.
func (h *Hub) Fulfill(res *Result) bool {
	if res == nil || res.RequestID == "" {
		return false
	}

	h.mu.Lock()
	ch, ok := h.pending[res.RequestID]
	if ok {
		delete(h.pending, res.RequestID)
	}
	h.mu.Unlock()

	if !ok {
		h.logger.Debug("dropping result with no waiting caller",
			logging.Field{Key: "requestId", Value: res.RequestID})
		return false
	}

	env := res.Envelope
	if env.Headers == nil {
		env.Headers = map[string]string{}
	}
	ch <- &env
	return true
}

// Attach adopts a freshly upgraded agent connection and starts reading
// results from it. A new connection supersedes any previous one.
func (h *Hub) Attach(conn *websocket.Conn) {
	h.connMu.Lock()
	old := h.conn
	h.conn = conn
	h.connMu.Unlock()

	if old != nil {
		old.Close()
	}

	h.logger.Info("requester agent attached",
		logging.Field{Key: "remote", Value: conn.RemoteAddr().String()})

	go h.readLoop(conn)
}

// AgentConnected reports whether an agent is currently attached.
func (h *Hub) AgentConnected() bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.conn != nil
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		var res Result
		if err := conn.ReadJSON(&res); err != nil {
			h.connMu.Lock()
			if h.conn == conn {
				h.conn = nil
			}
			h.connMu.Unlock()
			conn.Close()
			h.logger.Info("requester agent detached",
				logging.Field{Key: "error", Value: err.Error()})
			return
		}
		h.Fulfill(&res)
	}
}

func (h *Hub) send(t *Task) error {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.conn == nil {
		return errNoAgent
	}
	return h.conn.WriteJSON(t)
}

func (h *Hub) discard(id string) {
	h.mu.Lock()
	delete(h.pending, id)
	h.mu.Unlock()
}
