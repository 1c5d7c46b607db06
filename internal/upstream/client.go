// Package upstream translates the university's web services into typed
// records. Each fetcher builds one request, sends it through the execution
// router, and decodes the response or fails with a typed Error.
package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ksutools/portalgate/internal/logging"
	"github.com/ksutools/portalgate/internal/proxy"
)

// Client holds the fetchers for all four data domains.
type Client struct {
	router *proxy.Router
	cfg    Config
	logger logging.Logger
}

// NewClient creates a Client sending requests through router.
func NewClient(router *proxy.Router, cfg Config, logger logging.Logger) *Client {
	return &Client{
		router: router,
		cfg:    cfg,
		logger: logger.With(logging.Field{Key: "component", Value: "upstream"}),
	}
}

// baseHeaders builds the authenticated header set. It is a pure function of
// the token so identical calls produce identical requests.
func (c *Client) baseHeaders(token string) map[string]string {
	return map[string]string{
		"accept":          "application/json, text/plain, */*",
		"x-id-token":      token,
		"x-device-info":   "PC",
		"x-terminal-info": "PC",
		"referer":         c.cfg.PortalReferer,
	}
}

// fetchJSON executes one GET through the router and decodes the body into
// out. Transport failures (status 0) and undecodable bodies become typed
// errors; any decoded body is handed to the caller for its own envelope
// check, whatever the HTTP status.
func (c *Client) fetchJSON(ctx context.Context, url string, headers map[string]string, timeout time.Duration, out any) error {
	env, err := c.router.Execute(ctx, &proxy.Descriptor{
		Mode:      c.cfg.Mode,
		Method:    http.MethodGet,
		URL:       url,
		Headers:   headers,
		TimeoutMS: timeout.Milliseconds(),
	})
	if err != nil {
		return err
	}

	if env.Status == 0 {
		msg := env.Error
		if msg == "" {
			msg = "request failed"
		}
		return &Error{Kind: KindTransport, Message: msg}
	}

	if err := json.Unmarshal([]byte(env.Body), out); err != nil {
		return &Error{
			Kind:    KindDecode,
			Status:  env.Status,
			Message: "response is not valid JSON",
			Preview: preview(env.Body),
		}
	}
	return nil
}
