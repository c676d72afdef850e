package logstore

import (
	"errors"
	"os"
	"time"

	"github.com/anthanhphan/go-kv-store/internal/storage/metrics"
	"github.com/anthanhphan/gosdk/logger"
)

// Compact rewrites every live record held in sealed segments into one new
// segment, publishes the new locations and deletes the segments nothing
// references anymore. Reads and writes keep flowing while it runs.
func (s *LogStore) Compact() error {
	s.compactMu.Lock()
	defer s.compactMu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}

	start := time.Now()
	err := s.compact()
	metrics.ObserveEngineOp(engineName, metrics.OpCompact, start)
	if err != nil {
		metrics.EngineCompactions.WithLabelValues("error").Inc()
		return err
	}
	metrics.EngineCompactions.WithLabelValues("ok").Inc()
	s.compactions.Add(1)
	return nil
}

func (s *LogStore) compact() error {
	start := time.Now()

	// Seal the active segment. Generation sealed+1 receives the rewrite and
	// sealed+2 becomes the new active segment, so concurrent writes always
	// land above the compaction target.
	s.writeMu.Lock()
	if err := s.usableLocked(); err != nil {
		s.writeMu.Unlock()
		return err
	}
	sealedGen := s.active.gen
	target, err := createSegment(s.dir, sealedGen+1)
	if err != nil {
		s.writeMu.Unlock()
		return err
	}
	next, err := createSegment(s.dir, sealedGen+2)
	if err != nil {
		s.writeMu.Unlock()
		abandonSegment(target)
		return err
	}
	sealErr := s.active.seal()
	s.active = next
	staleAtSeal := s.staleBytes
	s.writeMu.Unlock()

	if sealErr != nil {
		abandonSegment(target)
		return sealErr
	}

	logger.Infow("Compaction started", "sealed_gen", sealedGen, "target_gen", target.gen, "stale_bytes", staleAtSeal)

	before := s.index.snapshot(func(loc Location) bool { return loc.Gen <= sealedGen })
	after := make(map[string]Location, len(before))
	for key, loc := range before {
		frame, err := s.readers.read(loc)
		if err != nil {
			abandonSegment(target)
			return err
		}
		if _, err := decodeRecord(frame); err != nil {
			s.fail(err)
			abandonSegment(target)
			return err
		}
		newLoc, err := target.appendNoSync(frame)
		if err != nil {
			abandonSegment(target)
			return err
		}
		after[key] = newLoc
	}

	if err := target.seal(); err != nil {
		_ = os.Remove(target.path)
		return err
	}

	// Publish first, delete second: a crash in between only leaves unreferenced files.
	_, referenced := s.index.swap(before, after)
	referenced[target.gen] = struct{}{}
	referenced[next.gen] = struct{}{}
	removed, reclaimed := s.removeUnreferenced(sealedGen, referenced)

	// Keys overwritten while the rewrite ran were already counted against their
	// old location, which is exactly the size of their now-dead rewritten copy.
	s.writeMu.Lock()
	s.staleBytes -= staleAtSeal
	if s.staleBytes < 0 {
		s.staleBytes = 0
	}
	s.writeMu.Unlock()

	metrics.EngineReclaimedBytes.Add(float64(reclaimed))
	s.publishGauges()

	logger.Infow("Compaction finished",
		"sealed_gen", sealedGen,
		"live_keys", len(after),
		"removed_segments", removed,
		"reclaimed_bytes", reclaimed,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// removeUnreferenced deletes segments up to and including maxGen that no index
// entry points into. Readers that pinned one of them before the swap keep an
// open handle and finish their read against the unlinked file.
func (s *LogStore) removeUnreferenced(maxGen uint64, referenced map[uint64]struct{}) (int, int64) {
	gens, err := listGenerations(s.dir)
	if err != nil {
		logger.Warnw("Failed to list segments for deletion", "error", err.Error())
		return 0, 0
	}

	removed := 0
	var reclaimed int64
	for _, gen := range gens {
		if gen > maxGen {
			break
		}
		if _, keep := referenced[gen]; keep {
			continue
		}

		path := segmentPath(s.dir, gen)
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		s.readers.evict(gen)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			// Stop here: a newer segment may hold the Remove record that
			// shadows a Set in this one.
			logger.Warnw("Failed to delete compacted segment", "segment_gen", gen, "error", err.Error())
			break
		}
		removed++
		reclaimed += size
	}
	return removed, reclaimed
}

// abandonSegment discards a partially written compaction target.
func abandonSegment(seg *activeSegment) {
	_ = seg.file.Close()
	if err := os.Remove(seg.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnw("Failed to remove abandoned segment", "segment_gen", seg.gen, "error", err.Error())
	}
}
