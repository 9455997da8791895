// Package cloud sends resolved evidence to the cloud detection service and
// stores the raw response for the elements that read it.
//
// An Engine owns one resource identity: a resource key, a normalized base
// URL and an optional Origin header. It lazily fetches the property metadata
// and evidence keys for that identity through a SchemaCache, then makes one
// POST per unit of work:
//
//	engine, err := cloud.New(cloud.Config{ResourceKey: key})
//	if err != nil {
//	    return err
//	}
//	data := flow.NewData(store)
//	if err := engine.Process(ctx, data); err != nil {
//	    return err
//	}
//	raw, _ := flow.GetAs[*cloud.Data](data, cloud.DataKey)
//
// Every failed call is returned as a *CloudRequestError. Retries belong to
// the transport.
package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"mercator-hq/cloudengine/pkg/cloud/transport"
	"mercator-hq/cloudengine/pkg/evidence"
	"mercator-hq/cloudengine/pkg/flow"
)

// Engine is the flow element that calls the cloud service.
type Engine struct {
	resourceKey string
	dispatcher  *Dispatcher
	schema      *SchemaCache
	observer    Observer
	logger      *slog.Logger
}

// New validates cfg and creates an Engine. No call is made to the cloud
// service until the engine is used.
func New(cfg Config) (*Engine, error) {
	if cfg.ResourceKey == "" {
		return nil, &ConfigError{Field: "resource_key", Message: "a resource key is required"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cloud.engine")

	t := cfg.Transport
	if t == nil {
		ht, err := transport.NewHTTPTransport(transport.Config{Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("failed to create default transport: %w", err)
		}
		t = ht
	}

	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	d := NewDispatcher(resolveEndPoint(cfg.EndPoint), cfg.ResourceKey, cfg.Origin, t, observer, logger)
	return &Engine{
		resourceKey: cfg.ResourceKey,
		dispatcher:  d,
		schema:      NewSchemaCache(d),
		observer:    observer,
		logger:      logger,
	}, nil
}

// DataKey implements flow.Element.
func (e *Engine) DataKey() string { return DataKey }

// BaseURL returns the normalized endpoint.
func (e *Engine) BaseURL() string { return e.dispatcher.BaseURL() }

// Dispatcher returns the engine's dispatcher.
func (e *Engine) Dispatcher() *Dispatcher { return e.dispatcher }

// Schema returns the engine's schema cache.
func (e *Engine) Schema() *SchemaCache { return e.schema }

// Properties returns the property metadata available to the resource key.
func (e *Engine) Properties(ctx context.Context) (Schema, error) {
	return e.schema.Properties(ctx)
}

// EvidenceKeyFilter returns the evidence keys the cloud service reads.
func (e *Engine) EvidenceKeyFilter(ctx context.Context) (evidence.KeyFilter, error) {
	keys, err := e.schema.EvidenceKeys(ctx)
	if err != nil {
		return evidence.KeyFilter{}, err
	}
	return evidence.NewKeyFilter(keys...), nil
}

// Prime fetches the property metadata and then the evidence keys.
func (e *Engine) Prime(ctx context.Context) error {
	if _, err := e.schema.Properties(ctx); err != nil {
		return err
	}
	if _, err := e.schema.EvidenceKeys(ctx); err != nil {
		return err
	}
	return nil
}

// Process resolves the evidence in data, posts it to the cloud service and
// stores the response as a *Data under DataKey.
func (e *Engine) Process(ctx context.Context, data *flow.Data) error {
	resolved := evidence.Resolve(data.Evidence())
	for _, c := range resolved.Conflicts {
		e.logger.Warn(c.String())
	}
	if len(resolved.Conflicts) > 0 {
		e.observer.ObserveConflicts(ctx, resolved.Conflicts)
	}

	if err := e.Prime(ctx); err != nil {
		return err
	}

	body, err := e.dispatcher.send(ctx, Call{
		Endpoint:  EndpointProcess,
		Method:    http.MethodPost,
		URL:       e.dispatcher.ProcessURL(),
		Conflicts: len(resolved.Conflicts),
	}, []byte(resolved.Query.Encode()))
	if err != nil {
		return err
	}

	data.Set(DataKey, NewData(body))
	return nil
}
