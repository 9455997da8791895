// Package enginefactory builds the cloud engine, its property elements and
// the observers around them from configuration.
//
// Both the command-line tools and the HTTP server use the same Stack:
//
//	stack, err := enginefactory.Build(cfg, enginefactory.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer stack.Close()
//	data := stack.Pipeline.CreateData(store)
//	err = stack.Pipeline.Process(ctx, data)
package enginefactory

import (
	"fmt"
	"log/slog"

	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/cloud/transport"
	"mercator-hq/cloudengine/pkg/config"
	"mercator-hq/cloudengine/pkg/flow"
	"mercator-hq/cloudengine/pkg/properties"
)

// NewTransport creates the HTTP transport described by cfg.
func NewTransport(cfg config.CloudConfig, logger *slog.Logger) (*transport.HTTPTransport, error) {
	return transport.NewHTTPTransport(transport.Config{
		Timeout:             cfg.Timeout,
		MaxRetries:          cfg.MaxRetries,
		RetryBackoff:        cfg.RetryBackoff,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		Logger:              logger,
	})
}

// NewEngine creates a cloud engine for cfg using t.
func NewEngine(cfg config.CloudConfig, t transport.Transport, observer cloud.Observer, logger *slog.Logger) (*cloud.Engine, error) {
	slog.Debug("creating cloud engine",
		"endpoint", cfg.EndPoint,
		"origin", cfg.Origin,
		"modules", cfg.Modules,
	)

	engine, err := cloud.New(cloud.Config{
		ResourceKey: cfg.ResourceKey,
		EndPoint:    cfg.EndPoint,
		Origin:      cfg.Origin,
		Transport:   t,
		Logger:      logger,
		Observer:    observer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud engine: %w", err)
	}
	return engine, nil
}

// NewPipeline places engine first, followed by one property element per
// configured module.
func NewPipeline(cfg config.CloudConfig, engine *cloud.Engine, lookups properties.LookupObserver, logger *slog.Logger) (*flow.Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	modules := cfg.Modules
	if len(modules) == 0 {
		modules = []string{config.DefaultCloudModule}
	}

	elements := []flow.Element{engine}
	seen := make(map[string]bool, len(modules))
	for _, module := range modules {
		if module == "" || module == cloud.DataKey {
			return nil, &cloud.ConfigError{
				Field:   "modules",
				Message: fmt.Sprintf("invalid module name %q", module),
			}
		}
		if seen[module] {
			continue
		}
		seen[module] = true

		opts := []properties.EngineOption{properties.WithLogger(logger)}
		if lookups != nil {
			opts = append(opts, properties.WithObserver(lookups))
		}
		elements = append(elements, properties.NewEngine(module, engine, opts...))
	}

	return flow.NewPipeline(flow.Options{
		SuppressProcessErrors: cfg.SuppressProcessErrors,
		Logger:                logger,
	}, elements...), nil
}
