package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineConfig_WithDefaults(t *testing.T) {
	cfg := EngineConfig{DataDir: "/tmp/kvs", CompactionThreshold: 10}.WithDefaults()

	assert.Equal(t, "/tmp/kvs", cfg.DataDir)
	assert.Equal(t, int64(10), cfg.CompactionThreshold)
	assert.Equal(t, DefaultReaderCacheSize, cfg.ReaderCacheSize)
	assert.Equal(t, DefaultMaxRecordSize, cfg.MaxRecordSize)

	empty := EngineConfig{}.WithDefaults()
	assert.Equal(t, ".", empty.DataDir)
	assert.Equal(t, int64(DefaultCompactionThreshold), empty.CompactionThreshold)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Empty(t, cfg.Server.HTTPAddr)
	assert.Positive(t, cfg.Server.Workers)
	assert.Equal(t, 4*cfg.Server.Workers, cfg.Server.QueueSize)
	assert.Empty(t, string(cfg.Engine.Kind))
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load("/nonexistent/kvs.yaml")
	assert.Error(t, err)
}
