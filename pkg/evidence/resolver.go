package evidence

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// bucketOrder is the merge order; later buckets overwrite earlier ones.
var bucketOrder = []string{PrefixOther, PrefixCookie, PrefixHeader, PrefixQuery}

// QueryMap maps a lower-cased evidence suffix to the value that will be sent
// to the cloud service. It is built once per unit of work and not modified
// afterwards.
type QueryMap map[string]string

// Encode returns the map as a URL-encoded form body, sorted by key.
func (q QueryMap) Encode() string {
	values := make(url.Values, len(q))
	for k, v := range q {
		values.Set(k, v)
	}
	return values.Encode()
}

// Conflict records a piece of non-query evidence that overwrote another value
// with the same suffix.
type Conflict struct {
	// Key and Value identify the evidence that won.
	Key   string
	Value string

	// Others lists every other supplied key sharing the suffix.
	Others []Entry
}

// String formats the conflict for diagnostics.
func (c Conflict) String() string {
	parts := make([]string, len(c.Others))
	for i, o := range c.Others {
		parts[i] = fmt.Sprintf("%s=>%s", o.Key, o.Value)
	}
	return fmt.Sprintf("'%s=>%s' evidence conflicts with %s", c.Key, c.Value, strings.Join(parts, ", "))
}

// Result is the outcome of Resolve.
type Result struct {
	Query     QueryMap
	Conflicts []Conflict
}

// Resolve flattens the store into a QueryMap using the precedence rules
// described in the package documentation. A nil or empty store yields an
// empty map.
func Resolve(store *Store) Result {
	result := Result{Query: make(QueryMap)}
	if store == nil {
		return result
	}

	all := store.All()
	parsed := make([]Key, 0, len(all))
	values := make(map[string]string, len(all))
	for _, e := range all {
		key, ok := ParseKey(e.Key)
		if !ok {
			continue
		}
		parsed = append(parsed, key)
		values[e.Key] = e.Value
	}

	for _, bucket := range bucketOrder {
		for _, key := range selectBucket(parsed, bucket) {
			value := values[key.Raw]
			if _, exists := result.Query[key.Suffix]; exists && key.Prefix != PrefixQuery {
				result.Conflicts = append(result.Conflicts, Conflict{
					Key:    key.Raw,
					Value:  value,
					Others: sharingSuffix(parsed, values, key),
				})
			}
			result.Query[key.Suffix] = value
		}
	}

	return result
}

// selectBucket returns the keys belonging to bucket. The other bucket is
// sorted by full key in descending order; the rest keep insertion order.
func selectBucket(keys []Key, bucket string) []Key {
	var selected []Key
	for _, k := range keys {
		if k.Bucket() == bucket {
			selected = append(selected, k)
		}
	}
	if bucket == PrefixOther {
		slices.SortStableFunc(selected, func(a, b Key) int {
			return strings.Compare(b.Raw, a.Raw)
		})
	}
	return selected
}

func sharingSuffix(keys []Key, values map[string]string, winner Key) []Entry {
	var others []Entry
	for _, k := range keys {
		if k.Raw == winner.Raw || k.Suffix != winner.Suffix {
			continue
		}
		others = append(others, Entry{Key: k.Raw, Value: values[k.Raw]})
	}
	return others
}
