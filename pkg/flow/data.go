// Package flow carries one unit of work through a sequence of elements.
//
// A Data value holds the caller's evidence, the result each element stores
// under its data key, and any errors recorded against an element when the
// pipeline suppresses process errors.
package flow

import (
	"fmt"
	"sync"

	"mercator-hq/cloudengine/pkg/evidence"
)

// ElementError is an error recorded against an element's data key.
type ElementError struct {
	DataKey string
	Err     error
}

func (e ElementError) Error() string {
	return fmt.Sprintf("%s: %v", e.DataKey, e.Err)
}

func (e ElementError) Unwrap() error {
	return e.Err
}

// Data is the per-request state shared by the elements of a pipeline.
type Data struct {
	evidence *evidence.Store

	mu      sync.RWMutex
	results map[string]any
	errors  []ElementError
}

// NewData creates flow data around the given evidence. A nil store is
// replaced with an empty one.
func NewData(ev *evidence.Store) *Data {
	if ev == nil {
		ev = evidence.NewStore()
	}
	return &Data{
		evidence: ev,
		results:  make(map[string]any),
	}
}

// Evidence returns the evidence supplied for this unit of work.
func (d *Data) Evidence() *evidence.Store {
	return d.evidence
}

// Set stores an element result under its data key.
func (d *Data) Set(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results[key] = value
}

// Get returns the result stored under key.
func (d *Data) Get(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.results[key]
	return v, ok
}

// Keys returns the data keys that have results.
func (d *Data) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make([]string, 0, len(d.results))
	for k := range d.results {
		keys = append(keys, k)
	}
	return keys
}

// AddError records err against the element with the given data key.
func (d *Data) AddError(key string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, ElementError{DataKey: key, Err: err})
}

// Errors returns recorded element errors in the order they occurred.
func (d *Data) Errors() []ElementError {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ElementError, len(d.errors))
	copy(out, d.errors)
	return out
}

// GetAs returns the result under key if it exists and has type T.
func GetAs[T any](d *Data, key string) (T, bool) {
	var zero T
	v, ok := d.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
