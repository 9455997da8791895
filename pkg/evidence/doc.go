// Package evidence holds the per-request evidence supplied by callers and the
// precedence rules used to flatten it into the query sent to the cloud service.
//
// # Evidence Keys
//
// Every piece of evidence is addressed by a dotted key such as
// "header.user-agent" or "query.session-id". Only the first segment (the
// prefix) and the last segment (the suffix) carry meaning. Both are compared
// case-insensitively. Keys without a separator have no suffix and are ignored
// by the resolver.
//
// # Precedence
//
// Resolve partitions evidence into four buckets and merges them in a fixed
// order, later buckets overwriting earlier ones on a shared suffix:
//
//  1. other  - any prefix that is not query, header or cookie (descending key order)
//  2. cookie
//  3. header
//  4. query
//
// Query evidence silently supersedes everything else. Any other overwrite is
// reported as a Conflict; conflicts are diagnostics and never stop processing.
//
// # Basic Usage
//
//	store := evidence.NewStore()
//	store.Set("header.User-Agent", "Mozilla/5.0 ...")
//	store.Set("query.User-Agent", "iPhone")
//
//	result := evidence.Resolve(store)
//	body := result.Query.Encode() // "user-agent=iPhone"
//	for _, c := range result.Conflicts {
//	    slog.Warn("evidence conflict", "conflict", c.String())
//	}
//
// # Evidence Interest
//
// The cloud service publishes the evidence keys it reads. KeyFilter wraps that
// list so callers only collect evidence that will actually be used.
package evidence
