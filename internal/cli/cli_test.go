package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthanhphan/go-kv-store/internal/storage/port"
)

type mapStore struct {
	data map[string]string
	err  error
}

func (m *mapStore) Get(_ context.Context, key string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapStore) Set(_ context.Context, key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *mapStore) Remove(_ context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.data[key]; !ok {
		return port.ErrKeyNotFound
	}
	delete(m.data, key)
	return nil
}

func run(store port.KVService, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), store, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestParseInterleaved(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", "default", "")

	args, err := ParseInterleaved(fs, []string{"set", "k", "-addr", "127.0.0.1:9", "v"})
	require.NoError(t, err)
	assert.Equal(t, []string{"set", "k", "v"}, args)
	assert.Equal(t, "127.0.0.1:9", *addr)

	_, err = ParseInterleaved(fs, []string{"get", "-nope"})
	assert.Error(t, err)
}

func TestExecute(t *testing.T) {
	store := &mapStore{data: map[string]string{}}

	code, _, _ := run(store, "set", "hello", "world")
	assert.Equal(t, ExitOK, code)

	code, stdout, _ := run(store, "get", "hello")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, "world\n", stdout)

	code, _, _ = run(store, "rm", "hello")
	assert.Equal(t, ExitOK, code)

	code, stdout, stderr := run(store, "get", "hello")
	assert.Equal(t, ExitError, code)
	assert.Empty(t, stdout)
	assert.Equal(t, "Key not found\n", stderr)

	code, _, stderr = run(store, "remove", "hello")
	assert.Equal(t, ExitError, code)
	assert.Equal(t, "Key not found\n", stderr)
}

func TestExecute_Usage(t *testing.T) {
	store := &mapStore{data: map[string]string{}}

	for _, args := range [][]string{
		nil,
		{"get"},
		{"set", "only-key"},
		{"rm", "a", "b"},
		{"frobnicate", "k"},
	} {
		code, _, stderr := run(store, args...)
		assert.Equal(t, ExitUsage, code, "args %v", args)
		assert.NotEmpty(t, stderr)
	}
}

func TestExecute_EngineError(t *testing.T) {
	store := &mapStore{err: errors.New("disk full")}

	code, _, stderr := run(store, "set", "k", "v")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "disk full")
}
