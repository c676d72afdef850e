package logstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/anthanhphan/go-kv-store/internal/storage/domain"
	"github.com/anthanhphan/go-kv-store/internal/storage/metrics"
	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/anthanhphan/gosdk/logger"
)

// recover rebuilds the index from every segment in generation order and
// returns the highest generation found (0 for an empty directory).
func (s *LogStore) recover() (uint64, error) {
	gens, err := listGenerations(s.dir)
	if err != nil {
		return 0, err
	}

	var last uint64
	for _, gen := range gens {
		if err := s.replaySegment(gen); err != nil {
			return 0, err
		}
		last = gen
	}
	return last, nil
}

// replaySegment applies the records of one segment to the index. Scanning
// stops at the first torn or malformed record; the tail after it is an
// interrupted write from an unclean shutdown. A frame that runs past the end of
// the file is cut off; a complete frame that fails validation stops the scan but
// its bytes stay on disk.
func (s *LogStore) replaySegment(gen uint64) error {
	path := segmentPath(s.dir, gen)
	// G304: path is built from the engine data dir and a generation number
	file, err := os.OpenFile(path, os.O_RDWR, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("%w: open segment %d: %w", port.ErrIO, gen, err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat segment %d: %w", port.ErrIO, gen, err)
	}
	size := info.Size()

	reader := bufio.NewReader(file)
	offset := int64(0)
	truncated := false

	for {
		cmd, n, err := scanRecord(reader, size-offset)
		if err == io.EOF {
			break
		}
		if errors.Is(err, errTornRecord) {
			truncated = true
			break
		}
		if errors.Is(err, errDamagedRecord) {
			logger.Warnw("Ignoring damaged segment records during replay",
				"segment_gen", gen,
				"valid_bytes", offset,
				"ignored_bytes", size-offset,
				"error", err.Error())
			break
		}
		if err != nil {
			return fmt.Errorf("%w: replay segment %d: %w", port.ErrIO, gen, err)
		}

		loc := Location{Gen: gen, Offset: offset, Length: n}
		switch cmd.Op {
		case domain.OpSet:
			if prev, existed := s.index.put(cmd.Key, loc); existed {
				s.staleBytes += prev.Length
			}
		case domain.OpRemove:
			if prev, existed := s.index.remove(cmd.Key); existed {
				s.staleBytes += prev.Length
			}
			s.staleBytes += n
		}
		offset += n
	}

	if truncated {
		if err := file.Truncate(offset); err != nil {
			return fmt.Errorf("%w: truncate torn tail of segment %d: %w", port.ErrIO, gen, err)
		}
		metrics.EngineTruncatedTails.Inc()
		logger.Warnw("Truncated torn segment tail during replay", "segment_gen", gen, "valid_bytes", offset)
	}

	return nil
}
