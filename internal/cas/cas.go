// Package cas drives the university's CAS single sign-on: it loads the login
// form, replays its hidden fields with the user's credentials, and digs the
// portal id token out of the service ticket issued on success.
package cas

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/ksutools/portalgate/internal/logging"
	"github.com/ksutools/portalgate/internal/proxy"
)

var (
	// ErrBadCredentials means CAS did not issue a ticket for the submitted
	// username and password.
	ErrBadCredentials = errors.New("login rejected: username or password incorrect")
	// ErrNoExecution means the login page carried no execution field, so the
	// form cannot be replayed. Usually a CAS outage or layout change.
	ErrNoExecution = errors.New("login form missing execution parameter")
	// ErrBadTicket means a ticket was issued but the id token could not be
	// extracted from it.
	ErrBadTicket = errors.New("cannot extract id token from service ticket")
)

// Config holds the CAS endpoint.
type Config struct {
	// LoginURL is the CAS login endpoint including the service parameter
	// that routes back to the portal.
	LoginURL string
	// Origin is sent on the credential POST.
	Origin  string
	Timeout time.Duration
}

// DefaultConfig returns the production CAS endpoint.
func DefaultConfig() Config {
	return Config{
		LoginURL: "https://cas.ksu.edu.cn/cas/login?service=https%3A%2F%2Fportal.ksu.edu.cn%2F%3Fpath%3Dhttps%253A%252F%252Fportal.ksu.edu.cn%252Fmain.html%2523%252F",
		Origin:   "https://cas.ksu.edu.cn",
		Timeout:  30 * time.Second,
	}
}

// Flow performs CAS logins through the execution router.
type Flow struct {
	router *proxy.Router
	cfg    Config
	logger logging.Logger
}

// New creates a Flow. Requests run on the local path; the gateway process is
// the privileged one.
func New(router *proxy.Router, cfg Config, logger logging.Logger) *Flow {
	return &Flow{
		router: router,
		cfg:    cfg,
		logger: logger.With(logging.Field{Key: "component", Value: "cas"}),
	}
}

func browserHeaders() map[string]string {
	return map[string]string{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	}
}

// Login runs the full flow and returns the portal id token.
func (f *Flow) Login(ctx context.Context, username, password string) (string, error) {
	timeoutMS := f.cfg.Timeout.Milliseconds()

	// Load the login form. Redirects are followed so we land on the real
	// form even if CAS bounces through session setup first.
	env, err := f.router.Execute(ctx, &proxy.Descriptor{
		Mode:      proxy.ModeLocal,
		Method:    http.MethodGet,
		URL:       f.cfg.LoginURL,
		Headers:   browserHeaders(),
		TimeoutMS: timeoutMS,
	})
	if err != nil {
		return "", err
	}
	if env.Status == 0 {
		return "", fmt.Errorf("loading login page: %s", env.Error)
	}
	if !env.OK {
		return "", fmt.Errorf("loading login page: http status %d", env.Status)
	}

	fields, err := harvestHiddenFields(env.Body)
	if err != nil {
		return "", fmt.Errorf("parsing login page: %w", err)
	}
	if fields["execution"] == "" {
		return "", ErrNoExecution
	}

	form := url.Values{
		"username":    {username},
		"password":    {password},
		"captcha":     {""},
		"mfaState":    {""},
		"currentMenu": {valueOr(fields, "currentMenu", "1")},
		"failN":       {valueOr(fields, "failN", "0")},
		"execution":   {fields["execution"]},
		"_eventId":    {"submit"},
		"geolocation": {fields["geolocation"]},
		"fpVisitorId": {fields["fpVisitorId"]},
	}

	headers := browserHeaders()
	headers["Content-Type"] = "application/x-www-form-urlencoded"
	headers["Origin"] = f.cfg.Origin
	headers["Referer"] = f.cfg.LoginURL

	noFollow := false
	env, err = f.router.Execute(ctx, &proxy.Descriptor{
		Mode:            proxy.ModeLocal,
		Method:          http.MethodPost,
		URL:             f.cfg.LoginURL,
		Headers:         headers,
		Body:            form.Encode(),
		TimeoutMS:       timeoutMS,
		FollowRedirects: &noFollow,
	})
	if err != nil {
		return "", err
	}
	if env.Status == 0 {
		return "", fmt.Errorf("submitting credentials: %s", env.Error)
	}

	// Success is a redirect whose Location carries the service ticket.
	location := env.HeaderGet("Location")
	if location == "" || !strings.Contains(location, "ticket=") {
		f.logger.Info("login rejected by cas",
			logging.Field{Key: "status", Value: env.Status})
		return "", ErrBadCredentials
	}

	token, err := extractIDToken(location)
	if err != nil {
		return "", err
	}

	f.logger.Info("login succeeded", logging.Field{Key: "username", Value: username})
	return token, nil
}

// harvestHiddenFields collects name→value of every hidden input on the page.
func harvestHiddenFields(html string) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	doc.Find("input").Each(func(_ int, sel *goquery.Selection) {
		if !strings.EqualFold(sel.AttrOr("type", ""), "hidden") {
			return
		}
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}
		fields[name] = sel.AttrOr("value", "")
	})
	return fields, nil
}

// extractIDToken pulls the JWT service ticket out of the redirect location
// and plucks idToken from its payload.
func extractIDToken(location string) (string, error) {
	decoded, err := url.QueryUnescape(location)
	if err != nil {
		decoded = location
	}

	idx := strings.Index(decoded, "ticket=")
	if idx < 0 {
		return "", ErrBadTicket
	}
	ticket := decoded[idx+len("ticket="):]
	if amp := strings.Index(ticket, "&"); amp >= 0 {
		ticket = ticket[:amp]
	}

	parts := strings.Split(ticket, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: ticket is not a JWT", ErrBadTicket)
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadTicket, err)
	}

	token := gjson.GetBytes(payload, "idToken")
	if !token.Exists() || token.String() == "" {
		return "", fmt.Errorf("%w: payload has no idToken", ErrBadTicket)
	}
	return token.String(), nil
}

func valueOr(fields map[string]string, key, fallback string) string {
	if v := fields[key]; v != "" {
		return v
	}
	return fallback
}
