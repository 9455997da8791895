package enginefactory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/cloud/transport"
	"mercator-hq/cloudengine/pkg/config"
	"mercator-hq/cloudengine/pkg/flow"
	"mercator-hq/cloudengine/pkg/journal"
	"mercator-hq/cloudengine/pkg/telemetry/health"
	"mercator-hq/cloudengine/pkg/telemetry/logging"
	"mercator-hq/cloudengine/pkg/telemetry/metrics"
)

// Options controls Build.
type Options struct {
	Logger *slog.Logger

	// Redactor masks resource keys in journal records. Nil uses a redactor
	// for the configured resource key.
	Redactor *logging.Redactor

	// Transport replaces the configured HTTP transport.
	Transport transport.Transport

	// DisableJournal skips the journal even when it is enabled in config.
	DisableJournal bool
}

// Stack is a ready-to-use engine with its observers.
//
// Stack is safe for concurrent use; Close releases everything it owns.
type Stack struct {
	Cloud    *cloud.Engine
	Pipeline *flow.Pipeline
	Modules  []string
	Metrics  *metrics.Collector

	// Journal and Recorder are nil when journaling is off.
	Journal  journal.Storage
	Recorder *journal.Recorder

	transport *transport.HTTPTransport
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// Build creates a Stack from cfg. cfg must already carry defaults.
func Build(cfg *config.Config, opts Options) (*Stack, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Stack{
		Modules: cfg.Cloud.Modules,
		Metrics: metrics.NewCollector(&cfg.Telemetry.Metrics),
		logger:  logger.With("component", "enginefactory"),
	}
	if len(s.Modules) == 0 {
		s.Modules = []string{config.DefaultCloudModule}
	}

	t := opts.Transport
	if t == nil {
		ht, err := NewTransport(cfg.Cloud, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		s.transport = ht
		t = ht
	}

	observers := cloud.Observers{s.Metrics}
	if cfg.Journal.Enabled && !opts.DisableJournal {
		storage, err := journal.Open(cfg.Journal)
		if err != nil {
			s.Close()
			return nil, err
		}
		redactor := opts.Redactor
		if redactor == nil {
			redactor = logging.NewRedactor(cfg.Cloud.ResourceKey)
		}
		s.Journal = storage
		s.Recorder = journal.NewRecorder(storage, cfg.Journal, redactor)
		observers = append(observers, s.Recorder)
	}

	engine, err := NewEngine(cfg.Cloud, t, observers, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Cloud = engine

	pipeline, err := NewPipeline(cfg.Cloud, engine, s.Metrics, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Pipeline = pipeline

	s.logger.Info("engine stack created",
		"base_url", engine.BaseURL(),
		"modules", s.Modules,
		"journal", s.Journal != nil,
	)
	return s, nil
}

// Prime fetches property metadata and evidence keys.
func (s *Stack) Prime(ctx context.Context) error {
	return s.Cloud.Prime(ctx)
}

// RegisterHealthChecks adds readiness checks for the stack's components.
func (s *Stack) RegisterHealthChecks(c *health.Checker) {
	c.Register("schema", func(context.Context) error {
		props, keys := s.Cloud.Schema().Loaded()
		if !props || !keys {
			return errors.New("cloud metadata not loaded yet")
		}
		return nil
	})
	if s.Journal != nil {
		c.Register("journal", func(ctx context.Context) error {
			_, err := s.Journal.Count(ctx, nil)
			return err
		})
	}
}

// Close drains the journal and releases connections. It is safe to call
// more than once.
func (s *Stack) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.Recorder != nil {
			errs = append(errs, s.Recorder.Close())
		}
		if s.Journal != nil {
			errs = append(errs, s.Journal.Close())
		}
		if s.transport != nil {
			errs = append(errs, s.transport.Close())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
