package app

import (
	"github.com/ksutools/portalgate/internal/cas"
	"github.com/ksutools/portalgate/internal/kvstore"
	"github.com/ksutools/portalgate/internal/proxy"
	"github.com/ksutools/portalgate/internal/upstream"
)

// Config aggregates the per-package configuration of the gateway.
type Config struct {
	// ListenAddr is where the HTTP API and the bridge endpoint bind.
	ListenAddr string

	// StorageRoot is the base path where persistent state is kept.
	StorageRoot string

	// Store selects the key-value backend. An empty Path is resolved under
	// StorageRoot.
	Store kvstore.Config

	// LocalBackend names the executor backend for the in-process path.
	LocalBackend string

	// Executor configuration shared by executor backends.
	Executor proxy.Config

	// Upstream endpoints and routing.
	Upstream upstream.Config

	// CAS login endpoint.
	CAS cas.Config
}

// DefaultConfig returns a Config populated with production defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:  "127.0.0.1:8964",
		StorageRoot: "~/.config/portalgate",
		Store: kvstore.Config{
			Backend: "sqlite",
		},
		LocalBackend: "nethttp",
		Executor: proxy.Config{
			// The campus CAS serves a certificate browsers reject.
			InsecureSkipVerify: true,
		},
		Upstream: upstream.DefaultConfig(),
		CAS:      cas.DefaultConfig(),
	}
}
