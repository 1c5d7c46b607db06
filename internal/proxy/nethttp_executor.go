package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ksutools/portalgate/internal/logging"
)

// NetHTTPExecutor executes descriptors with net/http.
type NetHTTPExecutor struct {
	base   *http.Client
	logger logging.Logger
}

// NewNetHTTPExecutor creates the in-process executor. If httpClient is nil a
// default client is constructed from cfg. The client must not carry its own
// Timeout; each descriptor brings one.
func NewNetHTTPExecutor(cfg Config, logger logging.Logger, httpClient *http.Client) *NetHTTPExecutor {
	componentLogger := logger.With(logging.Field{Key: "component", Value: "executor.nethttp"})

	if httpClient == nil {
		httpClient = &http.Client{}
		if cfg.InsecureSkipVerify {
			httpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			}
		}
	}

	return &NetHTTPExecutor{
		base:   httpClient,
		logger: componentLogger,
	}
}

// Execute performs one HTTP attempt and always returns an envelope. The
// descriptor's timeout bounds the whole attempt including reading the body;
// an elapsed timeout aborts the attempt and reports ErrorTimeout with
// status 0.
func (e *NetHTTPExecutor) Execute(ctx context.Context, d *Descriptor) *Envelope {
	if d == nil || d.URL == "" {
		return Failure("empty request descriptor")
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout())
	defer cancel()

	method := strings.ToUpper(d.Method)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if d.Body != "" {
		bodyReader = strings.NewReader(d.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, d.URL, bodyReader)
	if err != nil {
		return Failure("create request: " + err.Error())
	}
	for k, v := range d.Headers {
		httpReq.Header.Set(k, v)
	}

	// Redirect policy is per descriptor, so shallow-copy the base client.
	client := *e.base
	if d.ShouldFollowRedirects() {
		client.CheckRedirect = nil
	} else {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	e.logger.Debug("sending http request",
		logging.Field{Key: "method", Value: method},
		logging.Field{Key: "url", Value: d.URL})

	resp, err := client.Do(httpReq)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			msg = ErrorTimeout
		}
		e.logger.Warn("http request failed",
			logging.Field{Key: "method", Value: method},
			logging.Field{Key: "url", Value: d.URL},
			logging.Field{Key: "error", Value: msg})
		return Failure(msg)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		msg := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			msg = ErrorTimeout
		}
		e.logger.Warn("failed to read response body",
			logging.Field{Key: "url", Value: d.URL},
			logging.Field{Key: "error", Value: msg})
		return Failure(msg)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, vs := range resp.Header {
		if len(vs) > 0 {
			headers[k] = vs[0]
		}
	}

	return &Envelope{
		OK:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    string(body),
	}
}
