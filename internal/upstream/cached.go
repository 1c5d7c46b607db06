package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/ksutools/portalgate/internal/cache"
	"github.com/ksutools/portalgate/internal/kvstore"
	"github.com/ksutools/portalgate/internal/logging"
)

// Per-domain default maximum ages. These reflect how often the upstream data
// realistically changes, not a technical constraint.
const (
	DefaultGradesMaxAge   = 7 * 24 * time.Hour
	DefaultCalendarMaxAge = 30 * 24 * time.Hour
)

// CacheOptions override a cached fetch. Zero MaxAge means the domain default;
// Force always refetches.
type CacheOptions struct {
	MaxAge time.Duration
	Force  bool
}

// CachedClient gates the slow, rate-limited fetchers (grades, calendar)
// behind freshness-checked persisted records. Cache keys are namespaced by
// the user UID so a logout/login cycle on a shared device never serves one
// user's records to another.
type CachedClient struct {
	client   *Client
	grades   *cache.Store[*Grades]
	calendar *cache.Store[[]CalendarDay]
	logger   logging.Logger
}

// NewCachedClient wraps client with records persisted in kv.
func NewCachedClient(client *Client, kv kvstore.Store, logger logging.Logger) *CachedClient {
	return &CachedClient{
		client:   client,
		grades:   cache.New[*Grades](kv, logger),
		calendar: cache.New[[]CalendarDay](kv, logger),
		logger:   logger.With(logging.Field{Key: "component", Value: "upstream.cached"}),
	}
}

// Client returns the wrapped uncached client.
func (c *CachedClient) Client() *Client { return c.client }

// Grades returns the transcript for the user, served from the stored record
// when it is fresh enough.
func (c *CachedClient) Grades(ctx context.Context, token, userUID string, opts CacheOptions) (cache.Result[*Grades], error) {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultGradesMaxAge
	}
	return c.grades.Get(ctx, GradesKey(userUID), maxAge, opts.Force, func(ctx context.Context) (*Grades, error) {
		return c.client.Grades(ctx, token)
	})
}

// StaleGrades returns the stored transcript regardless of age, for callers
// that want to keep showing the last known value next to a fetch error.
func (c *CachedClient) StaleGrades(userUID string) (cache.Result[*Grades], bool) {
	return c.grades.Peek(GradesKey(userUID))
}

// CalendarMonth returns one calendar month for the user, served from the
// stored record when it is fresh enough.
func (c *CachedClient) CalendarMonth(ctx context.Context, token, userUID, yearMonth string, opts CacheOptions) (cache.Result[[]CalendarDay], error) {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultCalendarMaxAge
	}
	return c.calendar.Get(ctx, CalendarKey(userUID, yearMonth), maxAge, opts.Force, func(ctx context.Context) ([]CalendarDay, error) {
		return c.client.CalendarMonth(ctx, token, yearMonth)
	})
}

// StaleCalendarMonth returns the stored month regardless of age.
func (c *CachedClient) StaleCalendarMonth(userUID, yearMonth string) (cache.Result[[]CalendarDay], bool) {
	return c.calendar.Peek(CalendarKey(userUID, yearMonth))
}

// GradesKey is the storage key for a user's transcript record.
func GradesKey(userUID string) string {
	return fmt.Sprintf("cache:%s:grades", userUID)
}

// CalendarKey is the storage key for one calendar month of a user.
func CalendarKey(userUID, yearMonth string) string {
	return fmt.Sprintf("cache:%s:calendar:%s", userUID, yearMonth)
}
