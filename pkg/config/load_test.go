package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
cloud:
  resource_key: "AQS5HKcy"
  endpoint: "http://localhost:9000/api/v4"
  origin: "example.com"
  timeout: 5s
  max_retries: 2
  modules: [device, location]
server:
  listen_address: "0.0.0.0:9090"
telemetry:
  logging:
    level: debug
    format: text
journal:
  backend: sqlite
  sqlite:
    path: /tmp/journal.db
  retention:
    days: 7
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Cloud.ResourceKey != "AQS5HKcy" || cfg.Cloud.Origin != "example.com" {
		t.Errorf("cloud = %+v", cfg.Cloud)
	}
	if cfg.Cloud.Timeout != 5*time.Second || cfg.Cloud.MaxRetries != 2 {
		t.Errorf("timeout/retries = %v/%d", cfg.Cloud.Timeout, cfg.Cloud.MaxRetries)
	}
	if diff := cmp.Diff([]string{"device", "location"}, cfg.Cloud.Modules); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("listen_address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Journal.Backend != "sqlite" || cfg.Journal.Retention.Days != 7 {
		t.Errorf("journal = %+v", cfg.Journal)
	}

	// Defaults survive a partial file.
	if !cfg.Telemetry.Metrics.Enabled || cfg.Telemetry.Metrics.Path != DefaultPrometheusPath {
		t.Errorf("metrics defaults lost: %+v", cfg.Telemetry.Metrics)
	}
	if !cfg.Journal.Enabled || !cfg.Journal.SQLite.WALMode {
		t.Error("boolean defaults lost")
	}
	if cfg.Journal.Retention.Schedule != DefaultRetentionSchedule {
		t.Errorf("schedule = %q", cfg.Journal.Retention.Schedule)
	}
}

func TestLoadConfig_UnknownField(t *testing.T) {
	path := writeConfig(t, "cloud:\n  resourcekey: typo\n")

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}

func TestLoadConfig_Empty(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("empty file should equal defaults (-want +got):\n%s", diff)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "cloud:\n  resource_key: from-file\n")
	t.Setenv("CLOUDENGINE_CLOUD_RESOURCE_KEY", "from-env")
	t.Setenv("CLOUDENGINE_CLOUD_TIMEOUT", "3s")
	t.Setenv("CLOUDENGINE_CLOUD_MODULES", "device, location ,")
	t.Setenv("CLOUDENGINE_JOURNAL_ENABLED", "false")
	t.Setenv("CLOUDENGINE_TELEMETRY_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Cloud.ResourceKey != "from-env" {
		t.Errorf("resource_key = %q, want from-env", cfg.Cloud.ResourceKey)
	}
	if cfg.Cloud.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", cfg.Cloud.Timeout)
	}
	if diff := cmp.Diff([]string{"device", "location"}, cfg.Cloud.Modules); diff != "" {
		t.Errorf("modules mismatch (-want +got):\n%s", diff)
	}
	if cfg.Journal.Enabled {
		t.Error("journal should be disabled by the environment")
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("level = %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoad_FallsBackToEnvironment(t *testing.T) {
	t.Setenv("CLOUDENGINE_CLOUD_RESOURCE_KEY", "env-only")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cloud.ResourceKey != "env-only" {
		t.Errorf("resource_key = %q", cfg.Cloud.ResourceKey)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), true); err == nil {
		t.Error("an explicit missing file must be an error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"bad endpoint", func(c *Config) { c.Cloud.EndPoint = "cloud.example" }, "cloud.endpoint"},
		{"negative retries", func(c *Config) { c.Cloud.MaxRetries = -1 }, "cloud.max_retries"},
		{"reserved module", func(c *Config) { c.Cloud.Modules = []string{"cloud"} }, "cloud.modules[0]"},
		{"bad listen address", func(c *Config) { c.Server.ListenAddress = "8080" }, "server.listen_address"},
		{"bad level", func(c *Config) { c.Telemetry.Logging.Level = "loud" }, "telemetry.logging.level"},
		{"bad format", func(c *Config) { c.Telemetry.Logging.Format = "xml" }, "telemetry.logging.format"},
		{"bad metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
		{"unsorted buckets", func(c *Config) { c.Telemetry.Metrics.RequestDurationBuckets = []float64{1, 0.5} }, "telemetry.metrics.request_duration_buckets"},
		{"bad backend", func(c *Config) { c.Journal.Backend = "postgres" }, "journal.backend"},
		{"bad schedule", func(c *Config) { c.Journal.Retention.Schedule = "every day" }, "journal.retention.schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for %s in %v", tt.wantField, verr)
			}
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Validate(Default()) error = %v", err)
	}
}

func TestValidationError_Multiple(t *testing.T) {
	err := ValidationError{Errors: []FieldError{{"a", "x"}, {"b", "y"}}}
	if !strings.Contains(err.Error(), "with 2 errors") {
		t.Errorf("Error() = %q", err.Error())
	}
}
