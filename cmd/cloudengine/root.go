package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/cloudengine/pkg/cli"
	"mercator-hq/cloudengine/pkg/config"
	"mercator-hq/cloudengine/pkg/secrets"
	"mercator-hq/cloudengine/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cloudengine",
	Short: "Cloud device detection engine",
	Long: `Cloudengine resolves evidence (HTTP headers, cookies, query parameters)
into device properties by calling the cloud detection service.

It can be used from the command line or run as an HTTP service:
  - process:       send evidence and print property values
  - properties:    list the properties available to the resource key
  - evidence-keys: list the evidence keys the service accepts
  - serve:         expose the engine over HTTP with health and metrics
  - journal:       inspect and prune the record of cloud calls`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig reads the file named by --config. A missing default file falls
// back to defaults and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := resolveSecrets(cmd.Context(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveSecrets replaces ${secret:name} references in the cloud settings.
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	if !secrets.HasReferences(cfg.Cloud.ResourceKey) && !secrets.HasReferences(cfg.Cloud.Origin) {
		return nil
	}

	providers := []secrets.Provider{secrets.NewEnvProvider(cfg.Secrets.EnvPrefix)}
	if cfg.Secrets.Dir != "" {
		fp, err := secrets.NewFileProvider(cfg.Secrets.Dir)
		if err != nil {
			return err
		}
		providers = append(providers, fp)
	}
	resolver := secrets.NewResolver(cfg.Secrets.CacheTTL, providers...)

	var err error
	if cfg.Cloud.ResourceKey, err = resolver.ResolveReferences(ctx, cfg.Cloud.ResourceKey); err != nil {
		return fmt.Errorf("cloud.resource_key: %w", err)
	}
	if cfg.Cloud.Origin, err = resolver.ResolveReferences(ctx, cfg.Cloud.Origin); err != nil {
		return fmt.Errorf("cloud.origin: %w", err)
	}
	return nil
}

// setupLogging creates the process logger, writing to the command's error
// stream, and installs it as the slog default.
func setupLogging(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.New(cfg.Telemetry.Logging, cmd.ErrOrStderr(), cfg.Cloud.ResourceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	slog.SetDefault(logger.Logger)
	return logger, nil
}
