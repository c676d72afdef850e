package logstore

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/anthanhphan/gosdk/logger"
)

// segmentReader is a shared read-only handle on one segment file.
// The cache holds one reference; every in-flight read holds another. The file
// is closed when the last reference is released, so a segment deleted by
// compaction stays readable through handles that were acquired before the delete.
type segmentReader struct {
	gen  uint64
	file *os.File
	refs atomic.Int32
}

func (r *segmentReader) release() {
	if r.refs.Add(-1) == 0 {
		if err := r.file.Close(); err != nil {
			logger.Warnw("Failed to close segment reader", "segment_gen", r.gen, "error", err.Error())
		}
	}
}

// readAt reads exactly loc.Length bytes at loc.Offset.
func (r *segmentReader) readAt(loc Location) ([]byte, error) {
	buf := make([]byte, loc.Length)
	if _, err := r.file.ReadAt(buf, loc.Offset); err != nil {
		return nil, fmt.Errorf("%w: read segment %d at %d: %w", port.ErrIO, loc.Gen, loc.Offset, err)
	}
	return buf, nil
}

// readerCache keeps an LRU of open segment handles.
type readerCache struct {
	mu    sync.Mutex
	dir   string
	cache *lru.Cache
}

func newReaderCache(dir string, size int) (*readerCache, error) {
	cache, err := lru.NewWithEvict(size, func(_ interface{}, value interface{}) {
		value.(*segmentReader).release()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reader cache: %w", err)
	}
	return &readerCache{dir: dir, cache: cache}, nil
}

// acquire returns a referenced handle for gen. Callers must release it.
func (c *readerCache) acquire(gen uint64) (*segmentReader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Get(gen); ok {
		r := v.(*segmentReader)
		r.refs.Add(1)
		return r, nil
	}

	// G304: path is built from the engine data dir and a generation number
	file, err := os.Open(segmentPath(c.dir, gen)) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("%w: open segment %d: %w", port.ErrIO, gen, err)
	}
	r := &segmentReader{gen: gen, file: file}
	r.refs.Store(2) // cache + caller
	c.cache.Add(gen, r)
	return r, nil
}

// evict drops the cached handle for gen; open references keep the file alive.
func (c *readerCache) evict(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(gen)
}

func (c *readerCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// read resolves one record location to its raw frame.
func (c *readerCache) read(loc Location) ([]byte, error) {
	r, err := c.acquire(loc.Gen)
	if err != nil {
		return nil, err
	}
	defer r.release()
	return r.readAt(loc)
}
