package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthanhphan/go-kv-store/internal/storage/domain"
	"github.com/anthanhphan/go-kv-store/internal/storage/port"
)

// MarkerFile records which engine kind created a data directory.
const MarkerFile = "engine"

// readMarker returns the recorded kind, or "" for a directory without a marker.
func readMarker(dir string) (domain.EngineKind, error) {
	// G304: path is built from the configured data dir
	data, err := os.ReadFile(filepath.Join(dir, MarkerFile)) // #nosec G304
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read engine marker: %w", port.ErrIO, err)
	}

	kind, err := domain.ParseEngineKind(strings.TrimSpace(string(data)))
	if err != nil {
		return "", fmt.Errorf("%w: engine marker: %w", port.ErrCorruption, err)
	}
	return kind, nil
}

// writeMarker stores kind via a temp file and rename so a crash never leaves a partial marker.
func writeMarker(dir string, kind domain.EngineKind) error {
	tmp := filepath.Join(dir, MarkerFile+".tmp")
	// G304: path is built from the configured data dir
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("%w: create engine marker: %w", port.ErrIO, err)
	}
	if _, err := f.WriteString(string(kind)); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: write engine marker: %w", port.ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: sync engine marker: %w", port.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close engine marker: %w", port.ErrIO, err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, MarkerFile)); err != nil {
		return fmt.Errorf("%w: install engine marker: %w", port.ErrIO, err)
	}
	return nil
}

// resolveKind reconciles the requested kind with the one recorded on disk.
// An empty request adopts the recorded kind, or the default for a fresh directory.
func resolveKind(requested, recorded domain.EngineKind) (domain.EngineKind, error) {
	switch {
	case recorded == "" && requested == "":
		return domain.DefaultEngineKind, nil
	case recorded == "":
		return requested, nil
	case requested == "" || requested == recorded:
		return recorded, nil
	default:
		return "", fmt.Errorf("%w: directory holds %s data, %s requested", port.ErrEngineMismatch, recorded, requested)
	}
}
