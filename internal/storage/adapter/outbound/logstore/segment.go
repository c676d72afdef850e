package logstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/anthanhphan/gosdk/logger"
)

const SegmentPrefix = "segment-"

// errSegmentOffsetLost means a failed append could not be undone, so offsets
// computed from the in-memory size would no longer address the right bytes.
var errSegmentOffsetLost = errors.New("segment offset lost after failed append")

// Location addresses one record inside a segment.
type Location struct {
	Gen    uint64
	Offset int64
	Length int64
}

func segmentPath(dir string, gen uint64) string {
	return filepath.Join(dir, SegmentPrefix+strconv.FormatUint(gen, 10))
}

// parseSegmentName returns the generation encoded in a segment file name.
func parseSegmentName(name string) (uint64, bool) {
	digits, ok := strings.CutPrefix(name, SegmentPrefix)
	if !ok || digits == "" {
		return 0, false
	}
	gen, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || strconv.FormatUint(gen, 10) != digits {
		return 0, false
	}
	return gen, true
}

// listGenerations returns the generations of all segment files in dir, ascending.
func listGenerations(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list segments: %w", port.ErrIO, err)
	}

	gens := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if gen, ok := parseSegmentName(entry.Name()); ok {
			gens = append(gens, gen)
		}
	}
	slices.Sort(gens)
	return gens, nil
}

// activeSegment is the single segment open for append.
type activeSegment struct {
	gen  uint64
	path string
	file *os.File
	size int64
}

// createSegment creates a brand new segment file. It never reopens an existing one.
func createSegment(dir string, gen uint64) (*activeSegment, error) {
	path := segmentPath(dir, gen)
	// G304: path is built from the engine data dir and a generation number
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("%w: create segment %d: %w", port.ErrIO, gen, err)
	}
	return &activeSegment{gen: gen, path: path, file: file}, nil
}

// append writes one frame and fsyncs before returning its location.
func (s *activeSegment) append(frame []byte) (Location, error) {
	offset := s.size
	if _, err := s.file.Write(frame); err != nil {
		return Location{}, s.rollback(offset, fmt.Errorf("%w: append to segment %d: %w", port.ErrIO, s.gen, err))
	}
	if err := s.file.Sync(); err != nil {
		return Location{}, s.rollback(offset, fmt.Errorf("%w: sync segment %d: %w", port.ErrIO, s.gen, err))
	}

	s.size += int64(len(frame))
	return Location{Gen: s.gen, Offset: offset, Length: int64(len(frame))}, nil
}

// appendNoSync is used by compaction, which syncs once after the whole rewrite.
func (s *activeSegment) appendNoSync(frame []byte) (Location, error) {
	offset := s.size
	if _, err := s.file.Write(frame); err != nil {
		return Location{}, fmt.Errorf("%w: append to segment %d: %w", port.ErrIO, s.gen, err)
	}
	s.size += int64(len(frame))
	return Location{Gen: s.gen, Offset: offset, Length: int64(len(frame))}, nil
}

// rollback drops a partially written frame so the next append starts at a
// record boundary. If the truncate fails the file end no longer matches size;
// the returned error then also matches errSegmentOffsetLost.
func (s *activeSegment) rollback(offset int64, cause error) error {
	if err := s.file.Truncate(offset); err != nil {
		logger.Errorw("Failed to roll back partial append", "segment_gen", s.gen, "offset", offset, "error", err.Error())
		return fmt.Errorf("%w: %w: %w", cause, errSegmentOffsetLost, err)
	}
	return cause
}

// seal flushes and closes the segment. Its content never changes afterwards.
func (s *activeSegment) seal() error {
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	if syncErr != nil {
		return fmt.Errorf("%w: seal segment %d: %w", port.ErrIO, s.gen, syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: seal segment %d: %w", port.ErrIO, s.gen, closeErr)
	}
	return nil
}
