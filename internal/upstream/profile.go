package upstream

import "context"

type personalInfoRaw struct {
	Code    int      `json:"code"`
	Message *string  `json:"message"`
	Data    *Profile `json:"data"`
}

// Profile fetches the dashboard statistics for the token's user.
func (c *Client) Profile(ctx context.Context, token string) (*Profile, error) {
	var raw personalInfoRaw
	if err := c.fetchJSON(ctx, c.cfg.PersonalInfoURL, c.baseHeaders(token), c.cfg.InfoTimeout, &raw); err != nil {
		return nil, err
	}

	if raw.Code != 0 || raw.Data == nil {
		return nil, &Error{
			Kind:    KindDomain,
			Code:    raw.Code,
			Message: messageOr(raw.Message, "fetching personal info failed"),
		}
	}

	return raw.Data, nil
}
