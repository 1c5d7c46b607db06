// Package cache wraps expensive upstream fetches with a persisted,
// timestamped record per key. Freshness is decided lazily on every access
// against the caller's maximum age; nothing refreshes in the background.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ksutools/portalgate/internal/kvstore"
	"github.com/ksutools/portalgate/internal/logging"
)

// Record is the persisted shape: the payload plus the moment the underlying
// fetch succeeded. Older records missing newer optional payload fields must
// still parse, so unknown fields are ignored and absent ones default.
type Record[T any] struct {
	FetchedAt int64 `json:"fetchedAt"` // unix milliseconds
	Data      T     `json:"data"`
}

// Result is what an access returns: the payload, whether it came from the
// stored record, and when it was fetched from upstream.
type Result[T any] struct {
	Data      T
	FromCache bool
	FetchedAt time.Time
}

// FetchFunc produces a fresh payload from upstream.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Store is a freshness-gated cache over one payload type. Concurrent misses
// for the same key are collapsed into a single upstream fetch.
type Store[T any] struct {
	kv     kvstore.Store
	logger logging.Logger
	sf     singleflight.Group

	// Now is the clock used for freshness decisions and record stamps.
	// Tests may replace it.
	Now func() time.Time
}

// New creates a Store persisting records in kv.
func New[T any](kv kvstore.Store, logger logging.Logger) *Store[T] {
	return &Store[T]{
		kv:     kv,
		logger: logger.With(logging.Field{Key: "component", Value: "cache"}),
		Now:    time.Now,
	}
}

// Get returns the record for key, fetching from upstream only when the stored
// copy is missing, older than maxAge, or force is set. On a successful fetch
// the stored record is replaced whole; on a failed fetch it is left untouched
// and the error propagates.
func (s *Store[T]) Get(ctx context.Context, key string, maxAge time.Duration, force bool, fetch FetchFunc[T]) (Result[T], error) {
	if !force {
		if rec, ok := s.read(key); ok {
			fetchedAt := time.UnixMilli(rec.FetchedAt)
			if s.Now().Sub(fetchedAt) <= maxAge {
				return Result[T]{Data: rec.Data, FromCache: true, FetchedAt: fetchedAt}, nil
			}
		}
	}

	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		now := s.Now()
		raw, err := json.Marshal(Record[T]{FetchedAt: now.UnixMilli(), Data: data})
		if err != nil {
			return nil, fmt.Errorf("encoding cache record %q: %w", key, err)
		}
		if err := s.kv.Set(key, string(raw)); err != nil {
			return nil, fmt.Errorf("storing cache record %q: %w", key, err)
		}

		return Result[T]{Data: data, FromCache: false, FetchedAt: now}, nil
	})
	if err != nil {
		return Result[T]{}, err
	}
	return v.(Result[T]), nil
}

// Peek returns the stored record regardless of age, if one exists and is
// readable. Callers use it to keep showing the last known value next to a
// fetch error; the cache itself never substitutes it silently.
func (s *Store[T]) Peek(key string) (Result[T], bool) {
	rec, ok := s.read(key)
	if !ok {
		return Result[T]{}, false
	}
	return Result[T]{Data: rec.Data, FromCache: true, FetchedAt: time.UnixMilli(rec.FetchedAt)}, true
}

// Invalidate removes the stored record for key.
func (s *Store[T]) Invalidate(key string) error {
	return s.kv.Delete(key)
}

// read loads and decodes the stored record. Unreadable records are treated
// as absent.
func (s *Store[T]) read(key string) (Record[T], bool) {
	var rec Record[T]

	raw, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn("reading cache record failed",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "error", Value: err.Error()})
		return rec, false
	}
	if !ok {
		return rec, false
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("discarding unreadable cache record",
			logging.Field{Key: "key", Value: key},
			logging.Field{Key: "error", Value: err.Error()})
		return rec, false
	}
	return rec, true
}
