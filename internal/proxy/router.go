package proxy

import (
	"context"
	"errors"
	"fmt"

	"github.com/ksutools/portalgate/internal/logging"
)

var (
	// ErrNilDescriptor is returned for a nil or empty submission.
	ErrNilDescriptor = errors.New("nil request descriptor")
	// ErrUnknownMode is returned when a descriptor names no routable mode.
	ErrUnknownMode = errors.New("unknown execution mode")
)

// Router decides which executor runs a descriptor. The local executor runs
// in-process; the remote executor hands the request to the privileged agent.
// Transport outcomes, including the remote side being unreachable, are
// reported inside the envelope; the error return is reserved for submissions
// the router cannot interpret at all.
type Router struct {
	local  Executor
	remote Executor
	logger logging.Logger
}

// NewRouter creates a router over the two executors. remote may be nil, in
// which case remote-mode descriptors fail with a transport envelope.
func NewRouter(local, remote Executor, logger logging.Logger) *Router {
	return &Router{
		local:  local,
		remote: remote,
		logger: logger.With(logging.Field{Key: "component", Value: "router"}),
	}
}

// Execute routes one descriptor to its executor and returns the envelope.
func (r *Router) Execute(ctx context.Context, d *Descriptor) (*Envelope, error) {
	if d == nil || d.URL == "" {
		return nil, ErrNilDescriptor
	}

	mode := d.Mode
	if mode == "" {
		mode = ModeLocal
	}

	switch mode {
	case ModeLocal:
		return r.local.Execute(ctx, d), nil
	case ModeRemote:
		if r.remote == nil {
			r.logger.Warn("remote execution requested with no agent executor configured",
				logging.Field{Key: "url", Value: d.URL})
			return Failure("remote requester unavailable"), nil
		}
		return r.remote.Execute(ctx, d), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, d.Mode)
	}
}
