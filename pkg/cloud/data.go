package cloud

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Data is the raw response of a processing call.
type Data struct {
	// Raw is the response body exactly as returned by the service.
	Raw []byte

	once    sync.Once
	modules map[string]json.RawMessage
	err     error
}

// NewData wraps a raw response body.
func NewData(raw []byte) *Data {
	return &Data{Raw: raw}
}

// Modules splits the response into per-module payloads. Only the top level
// is decoded, and only once.
func (d *Data) Modules() (map[string]json.RawMessage, error) {
	d.once.Do(func() {
		if err := json.Unmarshal(d.Raw, &d.modules); err != nil {
			d.err = fmt.Errorf("failed to decode cloud response: %w", err)
		}
	})
	return d.modules, d.err
}

// Module returns the payload for the named module. The name is matched
// exactly first, then case-insensitively. A module the service omitted
// returns ok == false.
func (d *Data) Module(name string) (payload json.RawMessage, ok bool, err error) {
	modules, err := d.Modules()
	if err != nil {
		return nil, false, err
	}
	if p, ok := modules[name]; ok {
		return p, true, nil
	}
	for key, p := range modules {
		if strings.EqualFold(key, name) {
			return p, true, nil
		}
	}
	return nil, false, nil
}

// ModuleNames returns the top-level keys of the response, sorted.
func (d *Data) ModuleNames() ([]string, error) {
	modules, err := d.Modules()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
