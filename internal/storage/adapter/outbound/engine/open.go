// Package engine opens the storage engine selected for a data directory and
// ties its lifetime to the directory lock.
package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"

	"github.com/anthanhphan/go-kv-store/internal/storage/adapter/outbound/logstore"
	"github.com/anthanhphan/go-kv-store/internal/storage/adapter/outbound/sortedstore"
	"github.com/anthanhphan/go-kv-store/internal/storage/config"
	"github.com/anthanhphan/go-kv-store/internal/storage/domain"
	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/anthanhphan/gosdk/logger"
)

// Open locks cfg.DataDir, resolves the engine kind against the directory
// marker and opens the matching engine. Closing the engine releases the lock.
func Open(cfg config.EngineConfig) (port.Engine, error) {
	cfg = cfg.WithDefaults()
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", port.ErrIO, err)
	}

	lock, err := lockDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	inner, kind, err := openLocked(cfg)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	logger.Infow("Storage engine ready", "engine", kind, "data_dir", cfg.DataDir)
	return &lockedEngine{Engine: inner, kind: kind, lock: lock}, nil
}

func openLocked(cfg config.EngineConfig) (port.Engine, domain.EngineKind, error) {
	recorded, err := readMarker(cfg.DataDir)
	if err != nil {
		return nil, "", err
	}
	kind, err := resolveKind(cfg.Kind, recorded)
	if err != nil {
		return nil, "", err
	}
	cfg.Kind = kind

	var inner port.Engine
	switch kind {
	case domain.EngineKindLog:
		inner, err = logstore.New(cfg)
	case domain.EngineKindSorted:
		inner, err = sortedstore.New(cfg)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnknownEngineKind, kind)
	}
	if err != nil {
		return nil, "", err
	}

	if recorded == "" {
		if err := writeMarker(cfg.DataDir, kind); err != nil {
			_ = inner.Close()
			return nil, "", err
		}
	}
	return inner, kind, nil
}

// lockedEngine releases the directory lock after the wrapped engine closes.
type lockedEngine struct {
	port.Engine
	kind domain.EngineKind
	lock *flock.Flock
}

func (e *lockedEngine) Kind() domain.EngineKind {
	return e.kind
}

// Unwrap exposes the concrete engine, e.g. for compaction stats.
func (e *lockedEngine) Unwrap() port.Engine {
	return e.Engine
}

func (e *lockedEngine) Close() error {
	closeErr := e.Engine.Close()
	unlockErr := e.lock.Unlock()
	if unlockErr != nil {
		unlockErr = fmt.Errorf("%w: unlock data dir: %w", port.ErrIO, unlockErr)
	}
	return errors.Join(closeErr, unlockErr)
}
