// Package health serves liveness, readiness and version endpoints.
//
// Readiness runs every registered check concurrently with a per-check
// timeout. The serve command registers a "schema" check that reports whether
// the cloud metadata has been fetched, and a "journal" check against the
// journal storage.
package health
