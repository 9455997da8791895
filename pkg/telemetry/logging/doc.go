// Package logging builds the slog loggers used across cloudengine.
//
// New returns a *Logger wrapping a *slog.Logger whose handler adds the
// request ID found in the context and redacts resource keys from messages
// and string attributes:
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr, cfg.Cloud.ResourceKey)
//	slog.SetDefault(logger.Logger)
//
//	ctx = logging.WithRequestID(ctx, id)
//	logger.InfoContext(ctx, "processed") // includes request_id
//
// The level can be changed at runtime with SetLevel, which the serve command
// uses when its configuration file is reloaded.
package logging
