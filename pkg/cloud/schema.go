package cloud

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

const (
	flightProperties   = "properties"
	flightEvidenceKeys = "evidencekeys"
)

// SchemaCache lazily fetches and holds the evidence keys and property
// metadata for one resource identity.
//
// Each artifact is fetched at most once while the cache holds it. Concurrent
// first callers share a single fetch. A failed fetch stores nothing, so the
// next caller tries again. The returned values are shared and must not be
// modified.
type SchemaCache struct {
	dispatcher *Dispatcher
	group      singleflight.Group

	mu           sync.RWMutex
	schema       Schema
	evidenceKeys []string
	haveKeys     bool
}

// NewSchemaCache creates an empty cache that fetches through d.
func NewSchemaCache(d *Dispatcher) *SchemaCache {
	return &SchemaCache{dispatcher: d}
}

// Properties returns the property metadata by module.
func (c *SchemaCache) Properties(ctx context.Context) (Schema, error) {
	c.mu.RLock()
	schema := c.schema
	c.mu.RUnlock()
	if schema != nil {
		return schema, nil
	}

	v, err := c.do(ctx, flightProperties, func(ctx context.Context) (any, error) {
		c.mu.RLock()
		cached := c.schema
		c.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		body, err := c.dispatcher.send(ctx, Call{
			Endpoint: EndpointProperties,
			Method:   http.MethodGet,
			URL:      c.dispatcher.PropertiesURL(),
		}, nil)
		if err != nil {
			return nil, err
		}
		parsed, err := parseSchema(body)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.schema = parsed
		c.mu.Unlock()
		return parsed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Schema), nil
}

// EvidenceKeys returns the evidence keys the cloud service reads.
func (c *SchemaCache) EvidenceKeys(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	keys, ok := c.evidenceKeys, c.haveKeys
	c.mu.RUnlock()
	if ok {
		return keys, nil
	}

	v, err := c.do(ctx, flightEvidenceKeys, func(ctx context.Context) (any, error) {
		c.mu.RLock()
		cached, ok := c.evidenceKeys, c.haveKeys
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		body, err := c.dispatcher.send(ctx, Call{
			Endpoint: EndpointEvidenceKeys,
			Method:   http.MethodGet,
			URL:      c.dispatcher.EvidenceKeysURL(),
		}, nil)
		if err != nil {
			return nil, err
		}
		parsed, err := parseEvidenceKeys(body)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.evidenceKeys, c.haveKeys = parsed, true
		c.mu.Unlock()
		return parsed, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Loaded reports which artifacts are currently cached.
func (c *SchemaCache) Loaded() (properties, evidenceKeys bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.schema != nil, c.haveKeys
}

// Invalidate drops both artifacts so the next call fetches them again.
func (c *SchemaCache) Invalidate() {
	c.mu.Lock()
	c.schema = nil
	c.evidenceKeys, c.haveKeys = nil, false
	c.mu.Unlock()
}

// do runs fn once per key among concurrent callers. The shared fetch is not
// cancelled when one caller gives up; each caller still returns as soon as
// its own context is done.
func (c *SchemaCache) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}
