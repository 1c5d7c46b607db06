package kvstore

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/ksutools/portalgate/internal/logging"
)

// LevelDB is a Store backed by a goleveldb database directory.
type LevelDB struct {
	db     *leveldb.DB
	logger logging.Logger
}

// OpenLevelDB opens (creating if needed) the database directory at path.
func OpenLevelDB(path string, logger logging.Logger) (*LevelDB, error) {
	if path == "" {
		return nil, errors.New("leveldb store path is empty")
	}

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb store: %w", err)
	}

	logger.Info("opened leveldb store", logging.Field{Key: "path", Value: path})

	return &LevelDB{db: db, logger: logger}, nil
}

func (l *LevelDB) Get(key string) (string, bool, error) {
	value, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return string(value), true, nil
}

func (l *LevelDB) Set(key, value string) error {
	if err := l.db.Put([]byte(key), []byte(value), nil); err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

func (l *LevelDB) Delete(key string) error {
	if err := l.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
