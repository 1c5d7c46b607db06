package proxy

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ksutools/portalgate/internal/logging"
)

// Constructor builds an Executor given the config and logger.
type Constructor func(cfg Config, logger logging.Logger) (Executor, error)

// Config is the minimal configuration shared by executor backends.
type Config struct {
	// InsecureSkipVerify disables TLS certificate verification. The campus
	// portals are known to serve certificates browsers reject.
	InsecureSkipVerify bool
}

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{}
)

// RegisterBackend registers a named executor constructor. Name is lower-cased
// internally. Calling RegisterBackend with the same name overwrites the
// previous constructor.
func RegisterBackend(name string, ctor Constructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = ctor
}

// NewExecutor constructs the named executor backend. It returns an error if
// the backend has not been registered.
func NewExecutor(name string, cfg Config, logger logging.Logger) (Executor, error) {
	backend := strings.ToLower(strings.TrimSpace(name))
	if backend == "" {
		backend = "nethttp"
	}

	mu.RLock()
	ctor, ok := registry[backend]
	mu.RUnlock()
	if !ok || ctor == nil {
		return nil, fmt.Errorf("executor backend %q not registered: available backends=%v", backend, ListBackends())
	}

	ex, err := ctor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to construct executor backend %q: %w", backend, err)
	}
	if ex == nil {
		return nil, errors.New("executor constructor returned nil")
	}
	return ex, nil
}

// ListBackends returns the list of registered backend names.
func ListBackends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

// RegisterDefaultBackends registers the built-in nethttp backend. Call this
// early in main() to make it available to NewExecutor. Calling it more than
// once is harmless.
func RegisterDefaultBackends() {
	RegisterBackend("nethttp", func(cfg Config, logger logging.Logger) (Executor, error) {
		return NewNetHTTPExecutor(cfg, logger, nil), nil
	})
}
