// Package kvstore provides the persistence capability the rest of the system
// consumes: a flat string key-value store used for the saved credential, the
// identity snapshot, the remembered username, and every cached domain record.
// Writes are whole-value replacements; readers see either the old value or
// the new one, never a mix.
package kvstore

import (
	"fmt"
	"strings"

	"github.com/ksutools/portalgate/internal/logging"
)

// Store is the key-value contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)
	// Set stores value under key, replacing any previous value atomically.
	Set(key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	Close() error
}

// Config selects and parameterizes a storage backend.
type Config struct {
	// Backend is one of "memory", "sqlite", "leveldb".
	Backend string
	// Path is the database file (sqlite) or directory (leveldb). Unused by
	// the memory backend.
	Path string
}

// Open constructs the configured backend.
func Open(cfg Config, logger logging.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(cfg.Path, logger)
	case "leveldb":
		return OpenLevelDB(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown kvstore backend %q", cfg.Backend)
	}
}
