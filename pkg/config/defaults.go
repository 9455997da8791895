package config

import "time"

// Default values for configuration fields.
const (
	// Cloud defaults
	DefaultCloudTimeout             = 30 * time.Second
	DefaultCloudMaxRetries          = 0
	DefaultCloudRetryBackoff        = time.Second
	DefaultCloudMaxIdleConns        = 100
	DefaultCloudMaxIdleConnsPerHost = 10
	DefaultCloudIdleConnTimeout     = 90 * time.Second
	DefaultCloudModule              = "device"

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = int64(1048576) // 1MB

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultRedactResourceKeys = true
	DefaultMetricsEnabled     = true
	DefaultPrometheusPath     = "/metrics"
	DefaultMetricsNamespace   = "cloudengine"

	// Journal defaults
	DefaultJournalEnabled          = true
	DefaultJournalBackend          = "memory"
	DefaultJournalSQLitePath       = "data/journal.db"
	DefaultJournalSQLiteOpenConns  = 10
	DefaultJournalSQLiteIdleConns  = 5
	DefaultJournalSQLiteWALMode    = true
	DefaultJournalSQLiteBusy       = 5 * time.Second
	DefaultJournalAsyncBuffer      = 1000
	DefaultJournalWriteTimeout     = 5 * time.Second
	DefaultJournalMemoryMaxRecords = 10000
	DefaultRetentionDays           = 30
	DefaultRetentionSchedule       = "0 3 * * *"

	// Secrets
	DefaultSecretsEnvPrefix = "CLOUDENGINE_SECRET_"
	DefaultSecretsCacheTTL  = 5 * time.Minute
)

// DefaultRequestDurationBuckets are the cloud call histogram buckets.
var DefaultRequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Default returns a configuration with every default applied, including the
// boolean defaults that ApplyDefaults cannot infer from a zero value.
func Default() *Config {
	cfg := &Config{}
	cfg.Telemetry.Logging.RedactResourceKeys = DefaultRedactResourceKeys
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Journal.Enabled = DefaultJournalEnabled
	cfg.Journal.SQLite.WALMode = DefaultJournalSQLiteWALMode
	cfg.Journal.Retention.Days = DefaultRetentionDays
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any fields that have zero values.
// It is idempotent.
func ApplyDefaults(cfg *Config) {
	applyCloudDefaults(&cfg.Cloud)
	applyServerDefaults(&cfg.Server)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyJournalDefaults(&cfg.Journal)
	applySecretsDefaults(&cfg.Secrets)
}

func applyCloudDefaults(c *CloudConfig) {
	if c.Timeout == 0 {
		c.Timeout = DefaultCloudTimeout
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultCloudRetryBackoff
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = DefaultCloudMaxIdleConns
	}
	if c.MaxIdleConnsPerHost == 0 {
		c.MaxIdleConnsPerHost = DefaultCloudMaxIdleConnsPerHost
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = DefaultCloudIdleConnTimeout
	}
	if len(c.Modules) == 0 {
		c.Modules = []string{DefaultCloudModule}
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.ListenAddress == "" {
		s.ListenAddress = DefaultListenAddress
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultPrometheusPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(t.Metrics.RequestDurationBuckets) == 0 {
		t.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
}

func applyJournalDefaults(j *JournalConfig) {
	if j.Backend == "" {
		j.Backend = DefaultJournalBackend
	}
	if j.SQLite.Path == "" {
		j.SQLite.Path = DefaultJournalSQLitePath
	}
	if j.SQLite.MaxOpenConns == 0 {
		j.SQLite.MaxOpenConns = DefaultJournalSQLiteOpenConns
	}
	if j.SQLite.MaxIdleConns == 0 {
		j.SQLite.MaxIdleConns = DefaultJournalSQLiteIdleConns
	}
	if j.SQLite.BusyTimeout == 0 {
		j.SQLite.BusyTimeout = DefaultJournalSQLiteBusy
	}
	if j.AsyncBuffer == 0 {
		j.AsyncBuffer = DefaultJournalAsyncBuffer
	}
	if j.WriteTimeout == 0 {
		j.WriteTimeout = DefaultJournalWriteTimeout
	}
	if j.MemoryMaxRecords == 0 {
		j.MemoryMaxRecords = DefaultJournalMemoryMaxRecords
	}
	if j.Retention.Schedule == "" {
		j.Retention.Schedule = DefaultRetentionSchedule
	}
}

func applySecretsDefaults(s *SecretsConfig) {
	if s.EnvPrefix == "" {
		s.EnvPrefix = DefaultSecretsEnvPrefix
	}
	if s.CacheTTL == 0 {
		s.CacheTTL = DefaultSecretsCacheTTL
	}
}
