package logstore

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

const (
	// Number of index shards (power of 2 for efficient modulo)
	numShards = 256
	shardMask = numShards - 1
)

type indexShard struct {
	mu      sync.RWMutex
	entries map[string]Location
}

// keyIndex maps each live key to the location of its latest Set record.
//
// Point operations take tableMu shared plus one shard lock. Compaction takes
// tableMu exclusively to publish rewritten locations, so every reader observes
// either the full pre-compaction or the full post-compaction mapping.
type keyIndex struct {
	tableMu sync.RWMutex
	shards  [numShards]*indexShard
}

func newKeyIndex() *keyIndex {
	idx := &keyIndex{}
	for i := range idx.shards {
		idx.shards[i] = &indexShard{entries: make(map[string]Location)}
	}
	return idx
}

func (idx *keyIndex) shardFor(key string) *indexShard {
	return idx.shards[murmur3.Sum32([]byte(key))&shardMask]
}

func (idx *keyIndex) get(key string) (Location, bool) {
	idx.tableMu.RLock()
	defer idx.tableMu.RUnlock()
	return idx.getLocked(key)
}

// pin looks up key and, if present, calls fn with its location before the
// table lock is released. A compaction swap cannot happen in between, so fn
// can take a reference on the segment the location points into.
func (idx *keyIndex) pin(key string, fn func(Location) error) (Location, bool, error) {
	idx.tableMu.RLock()
	defer idx.tableMu.RUnlock()

	loc, ok := idx.getLocked(key)
	if !ok {
		return Location{}, false, nil
	}
	return loc, true, fn(loc)
}

func (idx *keyIndex) getLocked(key string) (Location, bool) {
	s := idx.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.entries[key]
	return loc, ok
}

// put installs loc for key and returns the location it replaced, if any.
func (idx *keyIndex) put(key string, loc Location) (Location, bool) {
	idx.tableMu.RLock()
	defer idx.tableMu.RUnlock()

	s := idx.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.entries[key]
	s.entries[key] = loc
	return prev, existed
}

// remove deletes key and returns the location it pointed at, if any.
func (idx *keyIndex) remove(key string) (Location, bool) {
	idx.tableMu.RLock()
	defer idx.tableMu.RUnlock()

	s := idx.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.entries[key]
	if existed {
		delete(s.entries, key)
	}
	return prev, existed
}

func (idx *keyIndex) len() int {
	idx.tableMu.RLock()
	defer idx.tableMu.RUnlock()

	n := 0
	for _, s := range idx.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// snapshot copies every entry whose location satisfies keep.
func (idx *keyIndex) snapshot(keep func(Location) bool) map[string]Location {
	idx.tableMu.RLock()
	defer idx.tableMu.RUnlock()

	out := make(map[string]Location)
	for _, s := range idx.shards {
		s.mu.RLock()
		for k, loc := range s.entries {
			if keep(loc) {
				out[k] = loc
			}
		}
		s.mu.RUnlock()
	}
	return out
}

// swap publishes rewritten locations atomically. An entry is only replaced if
// it still points where it did when the compaction snapshot was taken; keys
// overwritten or removed in the meantime keep their newer state. It returns the
// rewritten bytes that were not installed, plus the set of generations still
// referenced after the swap.
func (idx *keyIndex) swap(before, after map[string]Location) (int64, map[uint64]struct{}) {
	idx.tableMu.Lock()
	defer idx.tableMu.Unlock()

	var skipped int64
	for key, newLoc := range after {
		s := idx.shardFor(key)
		if cur, ok := s.entries[key]; ok && cur == before[key] {
			s.entries[key] = newLoc
			continue
		}
		skipped += newLoc.Length
	}

	referenced := make(map[uint64]struct{})
	for _, s := range idx.shards {
		for _, loc := range s.entries {
			referenced[loc.Gen] = struct{}{}
		}
	}
	return skipped, referenced
}
