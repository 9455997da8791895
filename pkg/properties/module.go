// Package properties resolves named properties from the per-module payloads
// returned by the cloud service.
//
// A lookup has three outcomes: the property has a value, it is present with
// no value and a reason, or it is absent. Get turns an absent property into a
// *PropertyNotFoundError naming the properties the module does provide.
package properties

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"mercator-hq/cloudengine/pkg/cloud"
)

const (
	// NullReasonSuffix is appended to a property name to find the reason a
	// null value was returned.
	NullReasonSuffix = "nullreason"

	// DefaultNoValueReason is used for a null value with no reason given.
	DefaultNoValueReason = "The cloud service returned no value for this property."

	// ReasonNotReturned is used for a declared property the service omitted.
	ReasonNotReturned = "The property is available for this resource key but was not returned by the cloud service."
)

// Kind classifies a lookup outcome.
type Kind int

const (
	KindAbsent Kind = iota
	KindValue
	KindNoValue
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindNoValue:
		return "no_value"
	default:
		return "absent"
	}
}

// Outcome is the result of a property lookup.
type Outcome struct {
	Kind Kind

	// Value is the decoded JSON value when Kind is KindValue.
	Value any

	// Raw is the undecoded JSON value when Kind is KindValue.
	Raw json.RawMessage

	// NoValueReason explains a KindNoValue outcome.
	NoValueReason string
}

// HasValue reports whether the outcome carries a value.
func (o Outcome) HasValue() bool { return o.Kind == KindValue }

// Decode unmarshals the raw value into v.
func (o Outcome) Decode(v any) error {
	if o.Kind != KindValue {
		return fmt.Errorf("property has no value: %s", o.NoValueReason)
	}
	return json.Unmarshal(o.Raw, v)
}

// LookupObserver is notified of every lookup outcome.
type LookupObserver interface {
	ObserveLookup(module string, kind Kind)
}

// ModuleData is one module's payload together with the module's declared
// properties.
type ModuleData struct {
	module   string
	payload  json.RawMessage
	meta     cloud.ModuleProperties
	observer LookupObserver

	once   sync.Once
	fields map[string]json.RawMessage
	err    error
}

// NewModuleData wraps a module payload. payload may be nil when the service
// returned nothing for the module. The payload is decoded on first lookup.
func NewModuleData(module string, payload json.RawMessage, meta cloud.ModuleProperties) *ModuleData {
	return &ModuleData{module: module, payload: payload, meta: meta}
}

// Module returns the module name.
func (m *ModuleData) Module() string { return m.module }

// Metadata returns the module's declared properties.
func (m *ModuleData) Metadata() cloud.ModuleProperties { return m.meta }

func (m *ModuleData) parse() (map[string]json.RawMessage, error) {
	m.once.Do(func() {
		m.fields = make(map[string]json.RawMessage)
		if len(bytes.TrimSpace(m.payload)) == 0 {
			return
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(m.payload, &raw); err != nil {
			m.err = fmt.Errorf("failed to decode %q payload: %w", m.module, err)
			return
		}
		for k, v := range raw {
			m.fields[strings.ToLower(k)] = v
		}
	})
	return m.fields, m.err
}

// Lookup resolves name without treating absence as an error. The error is
// only returned for a payload that is not a JSON object.
func (m *ModuleData) Lookup(name string) (Outcome, error) {
	fields, err := m.parse()
	if err != nil {
		return Outcome{}, err
	}

	outcome := m.resolve(fields, strings.ToLower(name))
	if m.observer != nil {
		m.observer.ObserveLookup(m.module, outcome.Kind)
	}
	return outcome, nil
}

func (m *ModuleData) resolve(fields map[string]json.RawMessage, key string) Outcome {
	raw, ok := fields[key]
	if !ok {
		if m.meta.Declares(key) {
			return Outcome{Kind: KindNoValue, NoValueReason: ReasonNotReturned}
		}
		return Outcome{Kind: KindAbsent}
	}

	if !isNull(raw) {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			v = nil
		}
		return Outcome{Kind: KindValue, Value: v, Raw: raw}
	}

	reason := DefaultNoValueReason
	if sibling, ok := fields[key+NullReasonSuffix]; ok {
		var s string
		if err := json.Unmarshal(sibling, &s); err == nil && s != "" {
			reason = s
		}
	}
	return Outcome{Kind: KindNoValue, NoValueReason: reason}
}

// Get resolves name, returning a *PropertyNotFoundError when the property
// is neither in the payload nor declared for the module.
func (m *ModuleData) Get(name string) (Outcome, error) {
	outcome, err := m.Lookup(name)
	if err != nil {
		return Outcome{}, err
	}
	if outcome.Kind == KindAbsent {
		return Outcome{}, &PropertyNotFoundError{
			Module:    m.module,
			Property:  name,
			Available: m.meta.Names(),
		}
	}
	return outcome, nil
}

// Names returns the lower-cased names of every property either declared for
// the module or present in the payload, sorted. Null-reason siblings are not
// included.
func (m *ModuleData) Names() ([]string, error) {
	fields, err := m.parse()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(fields)+len(m.meta))
	for k := range m.meta {
		seen[k] = true
	}
	for k := range fields {
		if !strings.HasSuffix(k, NullReasonSuffix) {
			seen[k] = true
		}
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
