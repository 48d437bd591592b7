package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carbonscope/pkg/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "carbonscope.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverlaysFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
logging:
  level: debug
exports:
  workers: 4
  queue_size: 32
thresholds:
  co2Emissions: [1, 2, 3]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("storage driver = %q", cfg.Storage.Driver)
	}
	// Untouched sections keep their defaults.
	if cfg.Blob.Driver != "fs" || cfg.Blob.Root != "./exportdata" {
		t.Fatalf("blob defaults lost: %+v", cfg.Blob)
	}
	if cfg.Logging.Level != "debug" || cfg.Exports.Workers != 4 {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Logging, cfg.Exports)
	}
	sets, err := cfg.ThresholdSets()
	if err != nil {
		t.Fatalf("ThresholdSets: %v", err)
	}
	set, ok := sets[domain.MetricCO2Emissions]
	if !ok {
		t.Fatal("co2Emissions threshold missing")
	}
	if set.Classify(2.5) != domain.BadgeOrange {
		t.Fatalf("classify(2.5) = %v", set.Classify(2.5))
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: sqlite
  pathh: typo.db
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown key to fail")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected missing file to fail")
	}
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "./carbonscope.db" {
		t.Fatalf("defaults lost: %+v", cfg.Storage)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: sqlite
  path: from-file.db
`)
	t.Setenv("CARBONSCOPE_STORAGE_DRIVER", "postgres")
	t.Setenv("CARBONSCOPE_POSTGRES_DSN", "postgres://db/carbonscope")
	t.Setenv("CARBONSCOPE_EXPORT_WORKERS", "8")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "postgres" || cfg.Storage.DSN != "postgres://db/carbonscope" {
		t.Fatalf("env override lost: %+v", cfg.Storage)
	}
	if cfg.Storage.Path != "from-file.db" {
		t.Fatalf("file value clobbered: %q", cfg.Storage.Path)
	}
	if cfg.Exports.Workers != 8 {
		t.Fatalf("workers = %d", cfg.Exports.Workers)
	}
}

func TestEnvIgnoresUnparsableInts(t *testing.T) {
	t.Setenv("CARBONSCOPE_EXPORT_WORKERS", "lots")
	cfg := Default()
	cfg.ApplyEnv()
	if cfg.Exports.Workers != 2 {
		t.Fatalf("workers = %d, want default 2", cfg.Exports.Workers)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"storage driver", func(c *Config) { c.Storage.Driver = "oracle" }, "storage driver"},
		{"sqlite path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"blob driver", func(c *Config) { c.Blob.Driver = "tape" }, "blob driver"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"workers", func(c *Config) { c.Exports.Workers = 0 }, "workers"},
		{"queue", func(c *Config) { c.Exports.QueueSize = -1 }, "queue_size"},
		{"threshold arity", func(c *Config) { c.Thresholds = map[string][]float64{"loadTime": {1, 2}} }, "cut points"},
		{"threshold order", func(c *Config) { c.Thresholds = map[string][]float64{"loadTime": {3, 2, 1}} }, "loadTime"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestThresholdSetsEmptyWhenUnset(t *testing.T) {
	sets, err := Default().ThresholdSets()
	if err != nil {
		t.Fatalf("ThresholdSets: %v", err)
	}
	if sets != nil {
		t.Fatalf("expected nil, got %v", sets)
	}
}
