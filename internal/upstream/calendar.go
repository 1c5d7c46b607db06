package upstream

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

type calendarRaw struct {
	Code    int           `json:"code"`
	Message *string       `json:"message"`
	Data    []CalendarDay `json:"data"`
}

// CalendarMonth fetches the academic calendar for one month. yearMonth uses
// the portal's own label format, e.g. "2026年01月".
func (c *Client) CalendarMonth(ctx context.Context, token, yearMonth string) ([]CalendarDay, error) {
	u, err := url.Parse(c.cfg.CalendarURL)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar url: %w", err)
	}
	q := u.Query()
	q.Set("ny", yearMonth)
	// The portal busts intermediary caches with a per-call number.
	q.Set("random_number", fmt.Sprintf("%d", time.Now().UnixMilli()))
	u.RawQuery = q.Encode()

	// The calendar endpoint wants only the credential header.
	headers := map[string]string{"x-id-token": token}

	var raw calendarRaw
	if err := c.fetchJSON(ctx, u.String(), headers, c.cfg.FetchTimeout, &raw); err != nil {
		return nil, err
	}

	if raw.Code != 0 {
		return nil, &Error{
			Kind:    KindDomain,
			Code:    raw.Code,
			Message: messageOr(raw.Message, "fetching calendar failed"),
		}
	}

	// An empty month is a valid answer, not a failure.
	if raw.Data == nil {
		return []CalendarDay{}, nil
	}
	return raw.Data, nil
}

// FormatYearMonth renders t in the portal's month-label format.
func FormatYearMonth(t time.Time) string {
	return fmt.Sprintf("%d年%02d月", t.Year(), int(t.Month()))
}
