// Package app wires the gateway's components together.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ksutools/portalgate/internal/cas"
	"github.com/ksutools/portalgate/internal/kvstore"
	"github.com/ksutools/portalgate/internal/logging"
	"github.com/ksutools/portalgate/internal/proxy"
	"github.com/ksutools/portalgate/internal/proxy/bridge"
	"github.com/ksutools/portalgate/internal/session"
	"github.com/ksutools/portalgate/internal/upstream"
)

// Application holds the constructed component graph.
type Application struct {
	Config *Config
	Logger logging.Logger

	KV      kvstore.Store
	Hub     *bridge.Hub
	Router  *proxy.Router
	Client  *upstream.Client
	Cached  *upstream.CachedClient
	CAS     *cas.Flow
	Session *session.Facade
}

// NewApplication builds every component from cfg. It registers the default
// executor backends; doing so repeatedly is harmless.
func NewApplication(cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewStdoutLogger("portalgate")
	}

	proxy.RegisterDefaultBackends()

	storageRoot, err := expandPath(cfg.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("expanding storage root path: %w", err)
	}
	cfg.StorageRoot = storageRoot
	if err := os.MkdirAll(storageRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root directory: %w", err)
	}

	storeCfg := cfg.Store
	if storeCfg.Path == "" {
		switch strings.ToLower(storeCfg.Backend) {
		case "sqlite":
			storeCfg.Path = filepath.Join(storageRoot, "portalgate.db")
		case "leveldb":
			storeCfg.Path = filepath.Join(storageRoot, "kv")
		}
	}

	kv, err := kvstore.Open(storeCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("opening key-value store: %w", err)
	}

	local, err := proxy.NewExecutor(cfg.LocalBackend, cfg.Executor, logger)
	if err != nil {
		kv.Close()
		return nil, err
	}

	hub := bridge.NewHub(logger)
	router := proxy.NewRouter(local, hub, logger)
	client := upstream.NewClient(router, cfg.Upstream, logger)
	cached := upstream.NewCachedClient(client, kv, logger)
	flow := cas.New(router, cfg.CAS, logger)
	sess := session.New(flow, client, kv, logger)

	return &Application{
		Config:  cfg,
		Logger:  logger,
		KV:      kv,
		Hub:     hub,
		Router:  router,
		Client:  client,
		Cached:  cached,
		CAS:     flow,
		Session: sess,
	}, nil
}

// Close releases the application's resources.
func (a *Application) Close() {
	if a.KV != nil {
		if err := a.KV.Close(); err != nil {
			a.Logger.Warn("closing key-value store",
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
}

func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}
	return p, nil
}
