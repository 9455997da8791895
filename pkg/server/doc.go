// Package server exposes the cloud engine over HTTP.
//
// Routes:
//
//	POST /v1/process       run the pipeline on form or JSON evidence
//	GET  /v1/properties    property metadata for the resource key
//	GET  /v1/evidencekeys  evidence keys the pipeline reads
//	GET  /health, /ready, /version
//	GET  /metrics          when a metrics handler is configured
//
// /v1/process accepts either an application/x-www-form-urlencoded body,
// where every field is an evidence key, or a JSON object of the form
// {"evidence": {"header.user-agent": "..."}}. With include_request=true in
// the query string the headers, cookies and query parameters of the call
// itself are added as header.*, cookie.* and query.* evidence, limited to the
// keys the pipeline declares.
//
// Every request gets an X-Request-ID, generated when the client does not send
// one, which is attached to the context for logging and the call journal.
package server
