package cloud

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// PropertyMeta describes a property the cloud service can return.
type PropertyMeta struct {
	Name     string
	Type     string
	Category string

	// ItemProperties describes the elements of array-typed properties.
	ItemProperties []PropertyMeta

	// Extra holds any other metadata fields, keyed in lower case.
	Extra map[string]any
}

// ModuleProperties maps a lower-cased property name to its metadata.
type ModuleProperties map[string]PropertyMeta

// Names returns the declared property names, sorted case-insensitively.
func (m ModuleProperties) Names() []string {
	names := make([]string, 0, len(m))
	for _, meta := range m {
		names = append(names, meta.Name)
	}
	slices.SortFunc(names, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return names
}

// Declares reports whether the module declares the named property.
func (m ModuleProperties) Declares(name string) bool {
	_, ok := m[strings.ToLower(name)]
	return ok
}

// Schema maps a lower-cased module name to its properties.
type Schema map[string]ModuleProperties

// Module returns the properties of the named module.
func (s Schema) Module(name string) ModuleProperties {
	return s[strings.ToLower(name)]
}

// parseSchema decodes an accessibleProperties response. Keys are lower-cased
// at every depth before the tree is indexed by module and property name.
func parseSchema(body []byte) (Schema, error) {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}

	tree, ok := lowerKeys(root).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("failed to decode properties: expected a JSON object")
	}

	schema := make(Schema)
	products, _ := tree["products"].(map[string]any)
	for module, product := range products {
		fields, _ := product.(map[string]any)
		list, _ := fields["properties"].([]any)

		props := make(ModuleProperties, len(list))
		for _, item := range list {
			meta, ok := toPropertyMeta(item)
			if !ok {
				continue
			}
			props[strings.ToLower(meta.Name)] = meta
		}
		schema[module] = props
	}
	return schema, nil
}

func toPropertyMeta(v any) (PropertyMeta, bool) {
	fields, ok := v.(map[string]any)
	if !ok {
		return PropertyMeta{}, false
	}
	name, _ := fields["name"].(string)
	if name == "" {
		return PropertyMeta{}, false
	}

	meta := PropertyMeta{Name: name}
	meta.Type, _ = fields["type"].(string)
	meta.Category, _ = fields["category"].(string)

	for key, value := range fields {
		switch key {
		case "name", "type", "category":
		case "itemproperties":
			items, _ := value.([]any)
			for _, item := range items {
				if child, ok := toPropertyMeta(item); ok {
					meta.ItemProperties = append(meta.ItemProperties, child)
				}
			}
		default:
			if meta.Extra == nil {
				meta.Extra = make(map[string]any)
			}
			meta.Extra[key] = value
		}
	}
	return meta, true
}

// lowerKeys returns a copy of a decoded JSON value with every object key
// lower-cased, recursively through objects and arrays.
func lowerKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[strings.ToLower(k)] = lowerKeys(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = lowerKeys(child)
		}
		return out
	default:
		return v
	}
}

func parseEvidenceKeys(body []byte) ([]string, error) {
	var keys []string
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, fmt.Errorf("failed to decode evidence keys: %w", err)
	}
	return keys, nil
}
