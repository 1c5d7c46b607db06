package upstream

import "context"

type userInfoRaw struct {
	Code    int     `json:"code"`
	Message *string `json:"message"`
	Data    *struct {
		Username   string `json:"username"`
		Attributes struct {
			OrganizationName *string `json:"organizationName"`
			IdentityTypeName *string `json:"identityTypeName"`
			UserName         *string `json:"userName"`
			UserID           *string `json:"userId"`
			UserUID          *string `json:"userUid"`
		} `json:"attributes"`
	} `json:"data"`
}

// Identity resolves who the token belongs to via the auth service.
func (c *Client) Identity(ctx context.Context, token string) (*Identity, error) {
	var raw userInfoRaw
	if err := c.fetchJSON(ctx, c.cfg.UserInfoURL, c.baseHeaders(token), c.cfg.InfoTimeout, &raw); err != nil {
		return nil, err
	}

	if raw.Code != 0 || raw.Data == nil {
		return nil, &Error{
			Kind:    KindDomain,
			Code:    raw.Code,
			Message: messageOr(raw.Message, "fetching user info failed"),
		}
	}

	attrs := raw.Data.Attributes
	return &Identity{
		Username:         raw.Data.Username,
		UserName:         stringOr(attrs.UserName),
		UserUID:          stringOr(attrs.UserUID),
		UserID:           stringOr(attrs.UserID),
		OrganizationName: stringOr(attrs.OrganizationName),
		IdentityTypeName: stringOr(attrs.IdentityTypeName),
	}, nil
}

func stringOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func messageOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
