package config

import "time"

// Config is the root configuration structure.
type Config struct {
	// Cloud configures the cloud service connection and the elements that
	// read its response.
	Cloud CloudConfig `yaml:"cloud"`

	// Server configures the HTTP surface started by "serve".
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Journal configures the record of calls made to the cloud service.
	Journal JournalConfig `yaml:"journal"`

	// Secrets configures how ${secret:name} references are resolved.
	Secrets SecretsConfig `yaml:"secrets"`
}

// CloudConfig contains the cloud service settings.
type CloudConfig struct {
	// ResourceKey identifies the subscription. Required by the engine.
	ResourceKey string `yaml:"resource_key"`

	// EndPoint is the base URL of the service. When empty the
	// FOD_CLOUD_API_URL environment variable, then the public endpoint,
	// is used.
	EndPoint string `yaml:"endpoint"`

	// Origin is sent as the Origin header on every call.
	Origin string `yaml:"origin"`

	// Timeout bounds a single HTTP attempt.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after a network error or 5xx.
	// Default: 0
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the base delay between retries.
	// Default: 1s
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// MaxIdleConns bounds idle connections.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// MaxIdleConnsPerHost bounds idle connections to the service.
	// Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`

	// IdleConnTimeout closes idle connections.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`

	// EagerSchema fetches property metadata and evidence keys at startup
	// instead of on the first request.
	// Default: false
	EagerSchema bool `yaml:"eager_schema"`

	// SuppressProcessErrors records element failures on the result instead
	// of failing the whole request.
	// Default: false
	SuppressProcessErrors bool `yaml:"suppress_process_errors"`

	// Modules lists the response modules exposed as property elements.
	// Default: ["device"]
	Modules []string `yaml:"modules"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the host:port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits the size of a process request body.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactResourceKeys hides resource keys in logged URLs and values.
	// Default: true
	RedactResourceKeys bool `yaml:"redact_resource_keys"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "cloudengine"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: ""
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets for cloud call
	// duration (seconds).
	// Default: [0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// JournalConfig configures the call journal.
type JournalConfig struct {
	// Enabled controls whether calls are journaled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// AsyncBuffer is the size of the recorder's write queue.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MemoryMaxRecords caps the memory backend. 0 means unlimited.
	// Default: 10000
	MemoryMaxRecords int `yaml:"memory_max_records"`

	// Retention configures pruning.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains sqlite storage settings.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/journal.db"
	Path string `yaml:"path"`

	// MaxOpenConns bounds open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns bounds idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long a writer waits for a lock.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig controls journal pruning.
type RetentionConfig struct {
	// Days deletes records older than this many days. 0 keeps everything.
	// Default: 30
	Days int `yaml:"days"`

	// MaxRecords deletes the oldest records beyond this count. 0 means no cap.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// Schedule is the cron expression for pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// SecretsConfig configures secret providers. Only cloud.resource_key and
// cloud.origin may contain references.
type SecretsConfig struct {
	// EnvPrefix prefixes environment variables holding secrets.
	// Default: "CLOUDENGINE_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir is a directory with one file per secret. Empty disables the file
	// provider.
	Dir string `yaml:"dir"`

	// CacheTTL is how long resolved values are reused.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}
