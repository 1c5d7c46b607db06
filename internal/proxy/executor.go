package proxy

import "context"

// Executor performs exactly one network attempt for a descriptor and always
// resolves to an envelope. Implementations must never panic on malformed
// input and must report transport-level problems inside the envelope rather
// than as Go errors.
type Executor interface {
	Execute(ctx context.Context, d *Descriptor) *Envelope
}
