package config

import (
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/anthanhphan/go-kv-store/internal/storage/domain"
	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

const (
	DefaultAddr                = "127.0.0.1:4000"
	DefaultCompactionThreshold = 1024 * 1024
	DefaultReaderCacheSize     = 64
	DefaultMaxRecordSize       = 32 * 1024 * 1024
)

// Config holds kvs-server configuration
type Config struct {
	Server ServerConfig  `json:"server" yaml:"server"`
	Engine EngineConfig  `json:"engine" yaml:"engine"`
	Logger logger.Config `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	// HTTPAddr enables the REST and metrics surface when set.
	HTTPAddr  string `json:"http_addr" yaml:"http_addr"`
	Workers   int    `json:"workers" yaml:"workers"`
	QueueSize int    `json:"queue_size" yaml:"queue_size"`
}

type EngineConfig struct {
	// Kind is empty to adopt whatever kind the data directory was created with.
	Kind                domain.EngineKind `json:"kind" yaml:"kind"`
	DataDir             string            `json:"data_dir" yaml:"data_dir"`
	CompactionThreshold int64             `json:"compaction_threshold" yaml:"compaction_threshold"`
	ReaderCacheSize     int               `json:"reader_cache_size" yaml:"reader_cache_size"`
	MaxRecordSize       int               `json:"max_record_size" yaml:"max_record_size"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	workers := runtime.NumCPU()
	return &Config{
		Server: ServerConfig{
			Addr:      DefaultAddr,
			Workers:   workers,
			QueueSize: 4 * workers,
		},
		Engine: DefaultEngineConfig("."),
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// DefaultEngineConfig returns engine defaults rooted at dataDir.
func DefaultEngineConfig(dataDir string) EngineConfig {
	return EngineConfig{
		DataDir:             dataDir,
		CompactionThreshold: DefaultCompactionThreshold,
		ReaderCacheSize:     DefaultReaderCacheSize,
		MaxRecordSize:       DefaultMaxRecordSize,
	}
}

// WithDefaults fills zero-valued tuning knobs.
func (c EngineConfig) WithDefaults() EngineConfig {
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.CompactionThreshold <= 0 {
		c.CompactionThreshold = DefaultCompactionThreshold
	}
	if c.ReaderCacheSize <= 0 {
		c.ReaderCacheSize = DefaultReaderCacheSize
	}
	if c.MaxRecordSize <= 0 {
		c.MaxRecordSize = DefaultMaxRecordSize
	}
	return c
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "storage", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		log.Printf("Config file not found or failed to parse, using defaults if file not specified. Path: %s, Error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		return cfg, nil
	}

	return parsedCfg, nil
}

// MustLoad loads configuration or exits on error
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}
