package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError holds every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the configuration and returns a ValidationError listing
// every problem, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError
	errs = append(errs, validateCloud(&cfg.Cloud)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	if cfg.Secrets.CacheTTL < 0 {
		errs = append(errs, FieldError{"secrets.cache_ttl", "must not be negative"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateCloud(c *CloudConfig) []FieldError {
	var errs []FieldError

	if c.EndPoint != "" {
		u, err := url.Parse(c.EndPoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{"cloud.endpoint", fmt.Sprintf("must be an absolute http(s) URL, got %q", c.EndPoint)})
		}
	}
	if c.Timeout < 0 {
		errs = append(errs, FieldError{"cloud.timeout", "must not be negative"})
	}
	if c.MaxRetries < 0 {
		errs = append(errs, FieldError{"cloud.max_retries", "must not be negative"})
	}
	if c.RetryBackoff < 0 {
		errs = append(errs, FieldError{"cloud.retry_backoff", "must not be negative"})
	}
	for i, m := range c.Modules {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, FieldError{fmt.Sprintf("cloud.modules[%d]", i), "must not be empty"})
		}
		if m == "cloud" {
			errs = append(errs, FieldError{fmt.Sprintf("cloud.modules[%d]", i), `"cloud" is reserved for the raw response`})
		}
	}
	return errs
}

func validateServer(s *ServerConfig) []FieldError {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
		errs = append(errs, FieldError{"server.listen_address", fmt.Sprintf("invalid host:port %q", s.ListenAddress)})
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 {
		errs = append(errs, FieldError{"server", "timeouts must not be negative"})
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{"server.shutdown_timeout", "must not be negative"})
	}
	if s.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{"server.max_body_bytes", "must not be negative"})
	}
	return errs
}

func validateTelemetry(t *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(t.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q", t.Logging.Level)})
	}
	switch strings.ToLower(t.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("unknown format %q", t.Logging.Format)})
	}

	if !strings.HasPrefix(t.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", "must start with /"})
	}
	for i := 1; i < len(t.Metrics.RequestDurationBuckets); i++ {
		if t.Metrics.RequestDurationBuckets[i] <= t.Metrics.RequestDurationBuckets[i-1] {
			errs = append(errs, FieldError{"telemetry.metrics.request_duration_buckets", "must be strictly increasing"})
			break
		}
	}
	return errs
}

func validateJournal(j *JournalConfig) []FieldError {
	var errs []FieldError

	switch j.Backend {
	case "memory":
	case "sqlite":
		if j.SQLite.Path == "" {
			errs = append(errs, FieldError{"journal.sqlite.path", "required for the sqlite backend"})
		}
	default:
		errs = append(errs, FieldError{"journal.backend", fmt.Sprintf("must be memory or sqlite, got %q", j.Backend)})
	}
	if j.AsyncBuffer < 0 {
		errs = append(errs, FieldError{"journal.async_buffer", "must not be negative"})
	}
	if j.Retention.Days < 0 {
		errs = append(errs, FieldError{"journal.retention.days", "must not be negative"})
	}
	if j.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{"journal.retention.max_records", "must not be negative"})
	}
	if _, err := cron.ParseStandard(j.Retention.Schedule); err != nil {
		errs = append(errs, FieldError{"journal.retention.schedule", fmt.Sprintf("invalid cron expression %q: %v", j.Retention.Schedule, err)})
	}
	return errs
}
