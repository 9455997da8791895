// Package transport performs the HTTP round trips made by the cloud engine.
//
// The engine decides what to send and how to classify what comes back; a
// Transport only moves bytes. Connection pooling, HTTP/2, timeouts and retry
// of transient failures all live here so the engine never retries on its own.
package transport

import (
	"context"
	"net/http"
)

// Request is an outbound call.
type Request struct {
	Method string
	URL    string
	Body   []byte
	Header http.Header
}

// Response is what came back, whatever the status code.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs a single logical request. Implementations return an
// error only when no response was received at all.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts an ordinary function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Do calls f(ctx, req).
func (f Func) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
