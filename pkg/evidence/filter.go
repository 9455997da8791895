package evidence

import (
	"slices"
	"strings"
)

// KeyFilter is a case-insensitive allow list of evidence keys.
// The zero value includes nothing.
type KeyFilter struct {
	keys map[string]string
}

// NewKeyFilter builds a filter from the given keys.
func NewKeyFilter(keys ...string) KeyFilter {
	f := KeyFilter{keys: make(map[string]string, len(keys))}
	for _, k := range keys {
		f.keys[strings.ToLower(k)] = k
	}
	return f
}

// Include reports whether the key is in the filter.
func (f KeyFilter) Include(key string) bool {
	_, ok := f.keys[strings.ToLower(key)]
	return ok
}

// Keys returns the filter's keys as originally supplied, sorted.
func (f KeyFilter) Keys() []string {
	out := make([]string, 0, len(f.keys))
	for _, k := range f.keys {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Union returns a filter including the keys of both filters.
func (f KeyFilter) Union(other KeyFilter) KeyFilter {
	merged := NewKeyFilter(f.Keys()...)
	for lower, k := range other.keys {
		merged.keys[lower] = k
	}
	return merged
}

// Filter returns a new store holding only the included evidence.
func (f KeyFilter) Filter(store *Store) *Store {
	out := NewStore()
	if store == nil {
		return out
	}
	for _, e := range store.All() {
		if f.Include(e.Key) {
			out.Set(e.Key, e.Value)
		}
	}
	return out
}
