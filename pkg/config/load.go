package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CLOUDENGINE_"

// Parse decodes YAML on top of Default() and applies defaults. It does not
// validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates it. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads a YAML file and applies environment
// overrides, which always take precedence over the file.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv builds a configuration from defaults and the environment only.
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Load reads path when it is set and exists, falling back to LoadFromEnv.
// An explicitly named file that does not exist is an error.
func Load(path string, explicit bool) (*Config, error) {
	if path == "" {
		return LoadFromEnv()
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return LoadFromEnv()
		}
		return nil, fmt.Errorf("configuration file %q: %w", path, err)
	}
	return LoadConfigWithEnvOverrides(path)
}

// applyEnvOverrides applies CLOUDENGINE_SECTION_FIELD overrides.
func applyEnvOverrides(cfg *Config) {
	envString("CLOUD_RESOURCE_KEY", &cfg.Cloud.ResourceKey)
	envString("CLOUD_ENDPOINT", &cfg.Cloud.EndPoint)
	envString("CLOUD_ORIGIN", &cfg.Cloud.Origin)
	envDuration("CLOUD_TIMEOUT", &cfg.Cloud.Timeout)
	envInt("CLOUD_MAX_RETRIES", &cfg.Cloud.MaxRetries)
	envDuration("CLOUD_RETRY_BACKOFF", &cfg.Cloud.RetryBackoff)
	envBool("CLOUD_EAGER_SCHEMA", &cfg.Cloud.EagerSchema)
	envBool("CLOUD_SUPPRESS_PROCESS_ERRORS", &cfg.Cloud.SuppressProcessErrors)
	if val := os.Getenv(EnvPrefix + "CLOUD_MODULES"); val != "" {
		var modules []string
		for _, m := range strings.Split(val, ",") {
			if m = strings.TrimSpace(m); m != "" {
				modules = append(modules, m)
			}
		}
		if len(modules) > 0 {
			cfg.Cloud.Modules = modules
		}
	}

	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_REDACT_RESOURCE_KEYS", &cfg.Telemetry.Logging.RedactResourceKeys)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)

	envBool("JOURNAL_ENABLED", &cfg.Journal.Enabled)
	envString("JOURNAL_BACKEND", &cfg.Journal.Backend)
	envString("JOURNAL_SQLITE_PATH", &cfg.Journal.SQLite.Path)
	envInt("JOURNAL_RETENTION_DAYS", &cfg.Journal.Retention.Days)
	envString("JOURNAL_RETENTION_SCHEDULE", &cfg.Journal.Retention.Schedule)

	envString("SECRETS_DIR", &cfg.Secrets.Dir)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
