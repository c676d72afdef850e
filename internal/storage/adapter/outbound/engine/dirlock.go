package engine

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/anthanhphan/go-kv-store/internal/storage/port"
)

// LockFile is held exclusively for as long as an engine owns the directory.
const LockFile = "kvs.lock"

// lockDir takes a non-blocking exclusive lock on dir. A second process, or a
// second engine in this process, gets ErrEngineLocked.
func lockDir(dir string) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(dir, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock data dir: %w", port.ErrIO, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrEngineLocked, dir)
	}
	return lock, nil
}
