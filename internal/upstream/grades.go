package upstream

import "context"

// The grades service wraps its payload differently from the portal services:
// a success flag plus an HTTP-style code.
type gradesRaw struct {
	Success bool    `json:"success"`
	Code    int     `json:"code"`
	Msg     string  `json:"msg"`
	Data    *Grades `json:"data"`
}

// Grades fetches the transcript summary for the token's user.
func (c *Client) Grades(ctx context.Context, token string) (*Grades, error) {
	var raw gradesRaw
	if err := c.fetchJSON(ctx, c.cfg.GradesURL, c.baseHeaders(token), c.cfg.FetchTimeout, &raw); err != nil {
		return nil, err
	}

	if !raw.Success || raw.Code != 200 || raw.Data == nil {
		msg := raw.Msg
		if msg == "" {
			msg = "fetching grades failed"
		}
		return nil, &Error{Kind: KindDomain, Code: raw.Code, Message: msg}
	}

	return raw.Data, nil
}
