package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// Default values for Config.
const (
	DefaultTimeout             = 30 * time.Second
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRetryBackoff        = time.Second
)

// Config contains HTTPTransport settings.
type Config struct {
	// Timeout bounds a single attempt, including reading the body.
	// Default: 30s
	Timeout time.Duration

	// MaxRetries is the number of extra attempts made after a network
	// error or a 5xx response. Zero disables retries.
	MaxRetries int

	// RetryBackoff is the base delay; attempt n waits RetryBackoff*2^(n-1).
	// Default: 1s
	RetryBackoff time.Duration

	// MaxIdleConns bounds idle connections across all hosts.
	MaxIdleConns int

	// MaxIdleConnsPerHost bounds idle connections to a single host.
	MaxIdleConnsPerHost int

	// IdleConnTimeout closes idle connections after this duration.
	IdleConnTimeout time.Duration

	// Logger receives debug and retry messages. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = DefaultMaxIdleConnsPerHost
	}
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = DefaultIdleConnTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Stats counts requests made through an HTTPTransport.
type Stats struct {
	TotalRequests  int64
	FailedRequests int64
	Retries        int64
	LastError      error
	LastSuccess    time.Time
}

// HTTPTransport is the default Transport, backed by net/http with
// connection pooling and HTTP/2 enabled.
type HTTPTransport struct {
	config Config
	client *http.Client
	logger *slog.Logger

	statsMu sync.RWMutex
	stats   Stats
}

// NewHTTPTransport creates a pooled HTTP transport.
func NewHTTPTransport(config Config) (*HTTPTransport, error) {
	config.applyDefaults()

	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
	}
	if err := http2.ConfigureTransport(base); err != nil {
		return nil, fmt.Errorf("failed to enable HTTP/2: %w", err)
	}

	return &HTTPTransport{
		config: config,
		client: &http.Client{
			Transport: base,
			Timeout:   config.Timeout,
		},
		logger: config.Logger.With("component", "cloud.transport"),
	}, nil
}

// Do performs the request, retrying network errors and 5xx responses up to
// MaxRetries times. The final response is returned unclassified.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	var (
		lastResp *Response
		lastErr  error
	)

	for attempt := 0; attempt <= t.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * t.config.RetryBackoff
			t.logger.Debug("retrying cloud request",
				"attempt", attempt,
				"max_retries", t.config.MaxRetries,
				"backoff", backoff,
			)
			t.recordRetry()

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := t.roundTrip(ctx, req)
		if err != nil {
			lastErr = err
			lastResp = nil
			t.recordRequest(false, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			t.logger.Warn("cloud request failed",
				"method", req.Method,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode < http.StatusInternalServerError {
			t.recordRequest(true, nil)
			return resp, nil
		}

		lastResp, lastErr = resp, nil
		t.recordRequest(false, fmt.Errorf("status %d", resp.StatusCode))
		t.logger.Warn("cloud request returned server error",
			"method", req.Method,
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
	}

	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

func (t *HTTPTransport) roundTrip(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (t *HTTPTransport) recordRequest(success bool, err error) {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()

	t.stats.TotalRequests++
	if success {
		t.stats.LastSuccess = time.Now()
		return
	}
	t.stats.FailedRequests++
	t.stats.LastError = err
}

func (t *HTTPTransport) recordRetry() {
	t.statsMu.Lock()
	t.stats.Retries++
	t.statsMu.Unlock()
}

// Stats returns a snapshot of the transport counters.
func (t *HTTPTransport) Stats() Stats {
	t.statsMu.RLock()
	defer t.statsMu.RUnlock()
	return t.stats
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
