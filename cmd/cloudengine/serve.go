package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/cloudengine/pkg/cli"
	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/config"
	"mercator-hq/cloudengine/pkg/enginefactory"
	"mercator-hq/cloudengine/pkg/journal"
	"mercator-hq/cloudengine/pkg/server"
	"mercator-hq/cloudengine/pkg/telemetry/health"
	"mercator-hq/cloudengine/pkg/telemetry/logging"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	watch         bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cloud engine over HTTP",
	Long: `Start the HTTP server with the specified configuration.

Routes:
  POST /v1/process        resolve evidence into property values
  GET  /v1/properties     property metadata
  GET  /v1/evidencekeys   accepted evidence keys
  GET  /health, /ready    liveness and readiness
  GET  /version           build information
  GET  /metrics           Prometheus metrics (when enabled)

Examples:
  # Start with default config
  cloudengine serve

  # Override listen address
  cloudengine serve --listen 0.0.0.0:8080

  # Validate config without starting the server
  cloudengine serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting server")
	serveCmd.Flags().BoolVar(&serveFlags.watch, "watch", true, "reload the log level when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}
	if cfg.Cloud.ResourceKey == "" {
		return &cloud.ConfigError{
			Field:   "resource_key",
			Message: fmt.Sprintf("required to serve (set cloud.resource_key or %sCLOUD_RESOURCE_KEY)", config.EnvPrefix),
		}
	}

	logger, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}

	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve runs the server until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	stack, err := enginefactory.Build(cfg, enginefactory.Options{
		Logger:   logger.Logger,
		Redactor: logger.Redactor(),
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer stack.Close()

	checker := health.New(0)
	stack.RegisterHealthChecks(checker)

	if cfg.Cloud.EagerSchema {
		logger.Info("fetching cloud metadata")
		if err := stack.Prime(ctx); err != nil {
			return cli.NewCommandError("serve", err)
		}
	}

	if stack.Journal != nil {
		scheduler := journal.NewScheduler(journal.NewPruner(stack.Journal, cfg.Journal.Retention), cfg.Journal.Retention.Schedule)
		if err := scheduler.Start(ctx); err != nil {
			return cli.NewCommandError("serve", err)
		}
		defer scheduler.Stop()
	}

	if serveFlags.watch {
		watchConfig(ctx, logger)
	}

	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		metricsHandler = stack.Metrics.Handler()
	}

	srv, err := server.New(cfg.Server, server.Deps{
		Cloud:       stack.Cloud,
		Pipeline:    stack.Pipeline,
		Modules:     stack.Modules,
		Health:      checker,
		Metrics:     metricsHandler,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Version:     Version,
		Commit:      GitCommit,
		BuildTime:   BuildDate,
		Logger:      logger.Logger,
	})
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	return srv.ListenAndServe(ctx)
}

// watchConfig applies log level changes from the config file until ctx is
// done. Other settings need a restart.
func watchConfig(ctx context.Context, logger *logging.Logger) {
	if _, err := os.Stat(cfgFile); err != nil {
		return
	}
	watcher, err := config.NewWatcher(cfgFile, 0, logger.Logger)
	if err != nil {
		logger.Warn("config watcher disabled", "error", err)
		return
	}

	go func() {
		err := watcher.Watch(ctx, func(cfg *config.Config) {
			level := cfg.Telemetry.Logging.Level
			if verbose {
				level = "debug"
			}
			if err := logger.SetLevel(level); err != nil {
				logger.Warn("ignoring invalid log level", "level", level, "error", err)
				return
			}
			logger.Info("log level reloaded", "level", level)
		})
		if err != nil {
			logger.Error("config watcher stopped", "error", err)
		}
	}()
}
