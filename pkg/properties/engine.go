package properties

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/evidence"
	"mercator-hq/cloudengine/pkg/flow"
)

// Source supplies property metadata and evidence interest. *cloud.Engine
// implements it.
type Source interface {
	Properties(ctx context.Context) (cloud.Schema, error)
	EvidenceKeyFilter(ctx context.Context) (evidence.KeyFilter, error)
}

// Engine is a flow element that exposes one module of the cloud response.
// It must run after the cloud engine.
type Engine struct {
	module   string
	source   Source
	observer LookupObserver
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithObserver reports lookup outcomes to o.
func WithObserver(o LookupObserver) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an element for module, reading metadata from source.
func NewEngine(module string, source Source, opts ...EngineOption) *Engine {
	e := &Engine{
		module: module,
		source: source,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "properties.engine", "module", module)
	return e
}

// DataKey implements flow.Element. Results are stored under the module name.
func (e *Engine) DataKey() string { return e.module }

// EvidenceKeyFilter declares the same evidence interest as the source.
func (e *Engine) EvidenceKeyFilter(ctx context.Context) (evidence.KeyFilter, error) {
	return e.source.EvidenceKeyFilter(ctx)
}

// Process reads the cloud response from data and stores a *ModuleData for
// the module.
func (e *Engine) Process(ctx context.Context, data *flow.Data) error {
	raw, ok := flow.GetAs[*cloud.Data](data, cloud.DataKey)
	if !ok {
		return fmt.Errorf("no %q data for module %q: the cloud engine must run first", cloud.DataKey, e.module)
	}

	schema, err := e.source.Properties(ctx)
	if err != nil {
		return err
	}

	payload, found, err := raw.Module(e.module)
	if err != nil {
		return err
	}
	if !found {
		e.logger.Debug("cloud response has no data for module")
	}

	md := NewModuleData(e.module, payload, schema.Module(e.module))
	md.observer = e.observer
	data.Set(e.module, md)
	return nil
}

// Get is a convenience that resolves a property from the module data stored
// in data.
func Get(data *flow.Data, module, property string) (Outcome, error) {
	md, ok := flow.GetAs[*ModuleData](data, module)
	if !ok {
		return Outcome{}, fmt.Errorf("no data for module %q", module)
	}
	return md.Get(property)
}
