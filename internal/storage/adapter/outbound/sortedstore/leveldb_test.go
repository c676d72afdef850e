package sortedstore

import (
	"path/filepath"
	"testing"

	"github.com/anthanhphan/go-kv-store/internal/storage/config"
	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Scenario(t *testing.T) {
	s, err := New(config.DefaultEngineConfig(t.TempDir()))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Set("hello", "world"))
	value, found, err := s.Get("hello")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "world", value)

	require.NoError(t, s.Set("hello", "there"))
	value, _, err = s.Get("hello")
	require.NoError(t, err)
	assert.Equal(t, "there", value)

	require.NoError(t, s.Remove("hello"))
	_, found, err = s.Get("hello")
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, s.Remove("hello"), port.ErrKeyNotFound)
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()

	s, err := New(config.DefaultEngineConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Set("empty", ""))
	require.NoError(t, s.Close())

	assert.DirExists(t, filepath.Join(dir, DirName))

	s, err = New(config.DefaultEngineConfig(dir))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	value, found, err := s.Get("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)

	value, found, err = s.Get("empty")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "", value)
}

func TestStore_Closed(t *testing.T) {
	s, err := New(config.DefaultEngineConfig(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Set("k", "v"), port.ErrEngineUnavailable)
	_, _, err = s.Get("k")
	assert.ErrorIs(t, err, port.ErrEngineUnavailable)
}
