package port

import (
	"context"
)

// KVService dispatches decoded client requests to the storage engine.
type KVService interface {
	// Get returns the value for key, or found=false if the key does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key, returning ErrKeyNotFound if it is absent.
	Remove(ctx context.Context, key string) error
}
