package upstream

import "fmt"

// Kind classifies a fetch failure.
type Kind string

const (
	// KindTransport means no HTTP response was obtained at all: timeout,
	// network unreachable, abort, or the remote requester never answering.
	KindTransport Kind = "transport"
	// KindHTTP means a response was obtained with a status outside the
	// success range.
	KindHTTP Kind = "http"
	// KindDecode means the body could not be parsed as the expected
	// structure.
	KindDecode Kind = "decode"
	// KindDomain means the body parsed but the service's own envelope
	// reported failure.
	KindDomain Kind = "domain"
)

// previewLimit bounds the raw-body excerpt carried by decode failures.
const previewLimit = 200

// Error is the typed failure every fetcher returns. No layer downgrades one
// to a default value; callers decide what to do with it.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, when a response was obtained
	Code    int    // upstream envelope code, when one was reported
	Message string
	Preview string // bounded raw-body excerpt, decode failures only
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("transport failure: %s", e.Message)
	case KindHTTP:
		return fmt.Sprintf("http failure (status %d): %s", e.Status, e.Message)
	case KindDecode:
		return fmt.Sprintf("decode failure (status %d): %s; body: %s", e.Status, e.Message, e.Preview)
	case KindDomain:
		return fmt.Sprintf("service rejected request (code %d): %s", e.Code, e.Message)
	default:
		return e.Message
	}
}

// preview truncates body for diagnostics without carrying unbounded payloads.
func preview(body string) string {
	if len(body) <= previewLimit {
		return body
	}
	return body[:previewLimit]
}
