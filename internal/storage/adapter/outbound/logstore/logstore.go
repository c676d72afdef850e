// Package logstore implements the log-structured storage engine.
//
// Every mutation is appended to the active segment file and fsynced before the
// in-memory index is updated. The index is never persisted: it is rebuilt on
// open by replaying all segments in generation order. Space held by superseded
// records is reclaimed by compaction once the stale byte count crosses the
// configured threshold.
package logstore

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anthanhphan/go-kv-store/internal/storage/config"
	"github.com/anthanhphan/go-kv-store/internal/storage/domain"
	"github.com/anthanhphan/go-kv-store/internal/storage/metrics"
	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/anthanhphan/gosdk/logger"
)

const engineName = string(domain.EngineKindLog)

// Stats is a point-in-time view of engine state.
type Stats struct {
	Keys        int
	Segments    int
	ActiveGen   uint64
	StaleBytes  int64
	Compactions int64
}

// LogStore implements port.Engine on top of append-only segment files.
type LogStore struct {
	dir     string
	cfg     config.EngineConfig
	index   *keyIndex
	readers *readerCache

	// writeMu serializes appends and guards active and staleBytes.
	writeMu    sync.Mutex
	active     *activeSegment
	staleBytes int64

	compactMu   sync.Mutex
	compactCh   chan struct{}
	stopCh      chan struct{}
	wg          sync.WaitGroup
	compactions atomic.Int64

	failure   atomic.Pointer[error]
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ port.Engine = (*LogStore)(nil)

// New opens the store in cfg.DataDir, replays existing segments and starts a
// fresh active segment. The caller is responsible for exclusive ownership of
// the directory.
func New(cfg config.EngineConfig) (*LogStore, error) {
	cfg = cfg.WithDefaults()
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", port.ErrIO, err)
	}

	readers, err := newReaderCache(cfg.DataDir, cfg.ReaderCacheSize)
	if err != nil {
		return nil, err
	}

	s := &LogStore{
		dir:       cfg.DataDir,
		cfg:       cfg,
		index:     newKeyIndex(),
		readers:   readers,
		compactCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}

	start := time.Now()
	lastGen, err := s.recover()
	if err != nil {
		readers.purge()
		return nil, fmt.Errorf("failed to replay segments: %w", err)
	}
	metrics.ObserveEngineOp(engineName, metrics.OpRecover, start)

	// Never append to a segment that existed before this run.
	active, err := createSegment(s.dir, lastGen+1)
	if err != nil {
		readers.purge()
		return nil, err
	}
	s.active = active
	s.publishGauges()

	logger.Infow("Log store opened",
		"data_dir", s.dir,
		"active_gen", active.gen,
		"keys", s.index.len(),
		"stale_bytes", s.staleBytes)

	s.wg.Add(1)
	go s.compactionWorker()

	s.writeMu.Lock()
	s.maybeCompactLocked()
	s.writeMu.Unlock()

	return s, nil
}

// Set appends a Set record and points the index at it.
func (s *LogStore) Set(key, value string) error {
	defer metrics.ObserveEngineOp(engineName, metrics.OpSet, time.Now())

	frame, err := encodeRecord(domain.NewSet(key, value), s.cfg.MaxRecordSize)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}

	loc, err := s.appendLocked(frame)
	if err != nil {
		return err
	}

	if prev, existed := s.index.put(key, loc); existed {
		s.addStaleLocked(prev.Length)
	}
	s.maybeCompactLocked()
	return nil
}

// Get reads the latest value of key straight from its segment.
func (s *LogStore) Get(key string) (string, bool, error) {
	defer metrics.ObserveEngineOp(engineName, metrics.OpGet, time.Now())

	if err := s.usable(); err != nil {
		return "", false, err
	}

	var reader *segmentReader
	loc, found, err := s.index.pin(key, func(loc Location) error {
		r, err := s.readers.acquire(loc.Gen)
		reader = r
		return err
	})
	if err != nil || !found {
		return "", false, err
	}
	defer reader.release()

	frame, err := reader.readAt(loc)
	if err != nil {
		return "", false, err
	}

	cmd, err := decodeRecord(frame)
	if err == nil && (cmd.Op != domain.OpSet || cmd.Key != key) {
		err = fmt.Errorf("%w: index entry for %q points at %s record for %q", port.ErrCorruption, key, cmd.Op, cmd.Key)
	}
	if err != nil {
		s.fail(err)
		return "", false, err
	}
	return cmd.Value, true, nil
}

// Remove appends a Remove record and drops key from the index.
func (s *LogStore) Remove(key string) error {
	defer metrics.ObserveEngineOp(engineName, metrics.OpRemove, time.Now())

	frame, err := encodeRecord(domain.NewRemove(key), s.cfg.MaxRecordSize)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}

	if _, ok := s.index.get(key); !ok {
		return port.ErrKeyNotFound
	}

	loc, err := s.appendLocked(frame)
	if err != nil {
		return err
	}

	// Both the removed Set and the Remove record itself are dead after compaction.
	prev, _ := s.index.remove(key)
	s.addStaleLocked(prev.Length + loc.Length)
	s.maybeCompactLocked()
	return nil
}

// Stats returns current engine counters.
func (s *LogStore) Stats() Stats {
	s.writeMu.Lock()
	stale := s.staleBytes
	var activeGen uint64
	if s.active != nil {
		activeGen = s.active.gen
	}
	s.writeMu.Unlock()

	gens, err := listGenerations(s.dir)
	if err != nil {
		logger.Warnw("Failed to list segments for stats", "data_dir", s.dir, "error", err.Error())
	}
	return Stats{
		Keys:        s.index.len(),
		Segments:    len(gens),
		ActiveGen:   activeGen,
		StaleBytes:  stale,
		Compactions: s.compactions.Load(),
	}
}

// Close stops background compaction, seals the active segment and closes all handles.
func (s *LogStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopCh)
		s.wg.Wait()

		// Wait out a manual compaction still in progress.
		s.compactMu.Lock()
		defer s.compactMu.Unlock()

		s.writeMu.Lock()
		if s.active != nil {
			err = s.active.seal()
			s.active = nil
		}
		s.writeMu.Unlock()

		s.readers.purge()
		logger.Infow("Log store closed", "data_dir", s.dir)
	})
	return err
}

func (s *LogStore) usable() error {
	if s.closed.Load() {
		return fmt.Errorf("%w: engine closed", port.ErrEngineUnavailable)
	}
	if p := s.failure.Load(); p != nil {
		return fmt.Errorf("%w: %w", port.ErrEngineUnavailable, *p)
	}
	return nil
}

func (s *LogStore) usableLocked() error {
	if err := s.usable(); err != nil {
		return err
	}
	if s.active == nil {
		return fmt.Errorf("%w: engine closed", port.ErrEngineUnavailable)
	}
	return nil
}

// fail records the first corruption or unrecoverable write seen; the engine
// refuses all further calls.
func (s *LogStore) fail(err error) {
	if s.failure.CompareAndSwap(nil, &err) {
		logger.Errorw("Log store marked unusable", "data_dir", s.dir, "error", err.Error())
	}
}

// appendLocked appends to the active segment. An append that cannot be rolled
// back leaves the segment in an unknown state, so the engine stops serving.
func (s *LogStore) appendLocked(frame []byte) (Location, error) {
	loc, err := s.active.append(frame)
	if err != nil && errors.Is(err, errSegmentOffsetLost) {
		s.fail(err)
	}
	return loc, err
}

func (s *LogStore) addStaleLocked(n int64) {
	s.staleBytes += n
	metrics.EngineStaleBytes.Set(float64(s.staleBytes))
}

// maybeCompactLocked signals the compaction worker once the threshold is crossed.
func (s *LogStore) maybeCompactLocked() {
	if s.staleBytes <= s.cfg.CompactionThreshold {
		return
	}
	select {
	case s.compactCh <- struct{}{}:
	default:
	}
}

func (s *LogStore) compactionWorker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.compactCh:
			if s.closed.Load() {
				return
			}
			if err := s.Compact(); err != nil {
				logger.Warnw("Background compaction failed", "data_dir", s.dir, "error", err.Error())
			}
		}
	}
}

func (s *LogStore) publishGauges() {
	if gens, err := listGenerations(s.dir); err == nil {
		metrics.EngineSegments.Set(float64(len(gens)))
	}
	metrics.EngineStaleBytes.Set(float64(s.staleBytes))
}
