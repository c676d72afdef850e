// Package sortedstore adapts an embedded LevelDB database to port.Engine.
package sortedstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/anthanhphan/go-kv-store/internal/storage/config"
	"github.com/anthanhphan/go-kv-store/internal/storage/domain"
	"github.com/anthanhphan/go-kv-store/internal/storage/metrics"
	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/anthanhphan/gosdk/logger"
)

// DirName is the subdirectory of the data dir that holds the database files.
const DirName = "leveldb"

const engineName = string(domain.EngineKindSorted)

var syncWrite = &opt.WriteOptions{Sync: true}

// Store implements port.Engine with LevelDB. Every write is synced before it
// is acknowledged, matching the durability of the log-structured engine.
type Store struct {
	path string
	db   *leveldb.DB

	// writeMu makes Remove's existence check and delete a single step.
	writeMu sync.Mutex
}

var _ port.Engine = (*Store)(nil)

// New opens or creates the database under cfg.DataDir.
func New(cfg config.EngineConfig) (*Store, error) {
	cfg = cfg.WithDefaults()
	path := filepath.Join(cfg.DataDir, DirName)

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, mapErr("open", err)
	}

	logger.Infow("Sorted store opened", "path", path)
	return &Store{path: path, db: db}, nil
}

func (s *Store) Set(key, value string) error {
	defer metrics.ObserveEngineOp(engineName, metrics.OpSet, time.Now())

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.db.Put([]byte(key), []byte(value), syncWrite); err != nil {
		return mapErr("put", err)
	}
	return nil
}

func (s *Store) Get(key string) (string, bool, error) {
	defer metrics.ObserveEngineOp(engineName, metrics.OpGet, time.Now())

	value, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, mapErr("get", err)
	}
	return string(value), true, nil
}

func (s *Store) Remove(key string) error {
	defer metrics.ObserveEngineOp(engineName, metrics.OpRemove, time.Now())

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ok, err := s.db.Has([]byte(key), nil)
	if err != nil {
		return mapErr("has", err)
	}
	if !ok {
		return port.ErrKeyNotFound
	}
	if err := s.db.Delete([]byte(key), syncWrite); err != nil {
		return mapErr("delete", err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		if errors.Is(err, leveldb.ErrClosed) {
			return nil
		}
		return mapErr("close", err)
	}
	logger.Infow("Sorted store closed", "path", s.path)
	return nil
}

func mapErr(op string, err error) error {
	switch {
	case errors.Is(err, leveldb.ErrClosed):
		return fmt.Errorf("%w: %s: %w", port.ErrEngineUnavailable, op, err)
	case lerrors.IsCorrupted(err):
		return fmt.Errorf("%w: %s: %w", port.ErrCorruption, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", port.ErrIO, op, err)
	}
}
