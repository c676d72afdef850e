package port

import (
	"errors"
)

var (
	// ErrKeyNotFound is returned when removing a key that is not present.
	ErrKeyNotFound = errors.New("key not found")

	ErrIO                = errors.New("storage io failure")
	ErrCorruption        = errors.New("corrupted log record")
	ErrEngineUnavailable = errors.New("engine unavailable")
	ErrRecordTooLarge    = errors.New("record exceeds maximum size")

	// Startup errors.
	ErrEngineLocked   = errors.New("data directory is locked by another engine instance")
	ErrEngineMismatch = errors.New("data directory was created by a different engine kind")
)

//go:generate mockgen -destination=../service/mocks/engine_mock.go -package=mocks -source=storage.go

// Engine is the key-value operation surface shared by every storage backend.
// Implementations are safe for concurrent use.
type Engine interface {
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Get returns the value stored under key. A missing key is reported through
	// found=false, not as an error.
	Get(key string) (value string, found bool, err error)

	// Remove deletes key. It returns ErrKeyNotFound if the key is absent.
	Remove(key string) error

	// Close flushes state and releases the data directory.
	Close() error
}
