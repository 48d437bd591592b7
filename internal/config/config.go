// Package config loads engine configuration from YAML and applies
// environment overrides so deployments can tune storage, exports, and
// thresholds without a file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"carbonscope/pkg/domain"
)

// Config is the root configuration document.
type Config struct {
	Storage    StorageConfig        `yaml:"storage"`
	Blob       BlobConfig           `yaml:"blob"`
	Logging    LoggingConfig        `yaml:"logging"`
	Exports    ExportsConfig        `yaml:"exports"`
	Thresholds map[string][]float64 `yaml:"thresholds,omitempty"`
}

// StorageConfig selects the assessment store backend.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// BlobConfig selects where export artifacts are written.
type BlobConfig struct {
	Driver string `yaml:"driver"`
	Root   string `yaml:"root,omitempty"`
	Bucket string `yaml:"bucket,omitempty"`
}

// LoggingConfig tunes the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ExportsConfig sizes the asynchronous export worker.
type ExportsConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() Config {
	return Config{
		Storage: StorageConfig{Driver: "sqlite", Path: "./carbonscope.db"},
		Blob:    BlobConfig{Driver: "fs", Root: "./exportdata"},
		Logging: LoggingConfig{Level: "info"},
		Exports: ExportsConfig{Workers: 2, QueueSize: 16},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides, and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeStrict(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeStrict rejects unknown keys so typos fail loudly instead of being
// silently dropped.
func decodeStrict(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays CARBONSCOPE_* environment variables.
//
//	CARBONSCOPE_STORAGE_DRIVER: memory|sqlite|postgres
//	CARBONSCOPE_SQLITE_PATH:    sqlite file path
//	CARBONSCOPE_POSTGRES_DSN:   postgres DSN
//	CARBONSCOPE_BLOB_DRIVER:    memory|fs|s3
//	CARBONSCOPE_BLOB_FS_ROOT:   directory root when driver=fs
//	CARBONSCOPE_BLOB_BUCKET:    bucket when driver=s3
//	CARBONSCOPE_LOG_LEVEL:      debug|info|warn|error
//	CARBONSCOPE_EXPORT_WORKERS: worker count
//	CARBONSCOPE_EXPORT_QUEUE:   queue capacity
func (c *Config) ApplyEnv() {
	setString(&c.Storage.Driver, "CARBONSCOPE_STORAGE_DRIVER")
	setString(&c.Storage.Path, "CARBONSCOPE_SQLITE_PATH")
	setString(&c.Storage.DSN, "CARBONSCOPE_POSTGRES_DSN")
	setString(&c.Blob.Driver, "CARBONSCOPE_BLOB_DRIVER")
	setString(&c.Blob.Root, "CARBONSCOPE_BLOB_FS_ROOT")
	setString(&c.Blob.Bucket, "CARBONSCOPE_BLOB_BUCKET")
	setString(&c.Logging.Level, "CARBONSCOPE_LOG_LEVEL")
	setInt(&c.Exports.Workers, "CARBONSCOPE_EXPORT_WORKERS")
	setInt(&c.Exports.QueueSize, "CARBONSCOPE_EXPORT_QUEUE")
}

func setString(target *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*target = v
	}
}

func setInt(target *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*target = n
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks driver names, worker sizing, and threshold shapes.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		return errors.New("storage.path required for sqlite driver")
	}
	switch c.Blob.Driver {
	case "memory", "fs", "s3":
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if c.Exports.Workers < 1 {
		return fmt.Errorf("exports.workers must be positive, got %d", c.Exports.Workers)
	}
	if c.Exports.QueueSize < 1 {
		return fmt.Errorf("exports.queue_size must be positive, got %d", c.Exports.QueueSize)
	}
	if _, err := c.ThresholdSets(); err != nil {
		return err
	}
	return nil
}

// ThresholdSets converts the compact cut-point form into per-metric bands.
// Each metric lists exactly three ascending values: the lower bounds of the
// yellow, orange, and red buckets.
func (c Config) ThresholdSets() (map[string]domain.ThresholdSet, error) {
	if len(c.Thresholds) == 0 {
		return nil, nil
	}
	sets := make(map[string]domain.ThresholdSet, len(c.Thresholds))
	names := make([]string, 0, len(c.Thresholds))
	for name := range c.Thresholds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cuts := c.Thresholds[name]
		if len(cuts) != 3 {
			return nil, fmt.Errorf("threshold %s: want 3 cut points, got %d", name, len(cuts))
		}
		set := domain.NewThresholdSet(cuts[0], cuts[1], cuts[2])
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("threshold %s: %w", name, err)
		}
		sets[name] = set
	}
	return sets, nil
}
