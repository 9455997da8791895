// Package telemetry groups the observability packages of the cloud engine.
//
//   - logging: slog loggers with request IDs and resource-key redaction
//   - metrics: Prometheus collector for cloud calls and property lookups
//   - health: liveness and readiness endpoints
package telemetry
