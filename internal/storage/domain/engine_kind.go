package domain

import (
	"errors"
	"strings"
)

var ErrUnknownEngineKind = errors.New("unknown engine kind")

// EngineKind selects the storage engine implementation backing a data directory.
type EngineKind string

const (
	// EngineKindLog is the log-structured engine with an in-memory hash index.
	EngineKindLog EngineKind = "kvs"
	// EngineKindSorted is the embedded sorted-storage engine.
	EngineKindSorted EngineKind = "leveldb"

	DefaultEngineKind = EngineKindLog
)

// ParseEngineKind parses a case-insensitive engine name. Empty input yields an empty kind.
func ParseEngineKind(s string) (EngineKind, error) {
	switch k := EngineKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", EngineKindLog, EngineKindSorted:
		return k, nil
	default:
		return "", ErrUnknownEngineKind
	}
}

func (k EngineKind) String() string { return string(k) }
