package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"mercator-hq/cloudengine/pkg/cloud/transport"
)

// Dispatcher builds cloud service URLs, performs calls through a Transport
// and classifies the responses.
type Dispatcher struct {
	baseURL     string
	resourceKey string
	origin      string
	transport   transport.Transport
	observer    Observer
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher for one resource identity. baseURL is
// normalized to end with a slash.
func NewDispatcher(baseURL, resourceKey, origin string, t transport.Transport, observer Observer, logger *slog.Logger) *Dispatcher {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		baseURL:     NormalizeBaseURL(baseURL),
		resourceKey: resourceKey,
		origin:      origin,
		transport:   t,
		observer:    observer,
		logger:      logger,
	}
}

// BaseURL returns the normalized base URL.
func (d *Dispatcher) BaseURL() string { return d.baseURL }

// ProcessURL is the URL of the main processing call.
func (d *Dispatcher) ProcessURL() string {
	return d.baseURL + d.resourceKey + ".json?"
}

// PropertiesURL is the URL listing the properties available to the resource key.
func (d *Dispatcher) PropertiesURL() string {
	return d.baseURL + "accessibleProperties?resource=" + url.QueryEscape(d.resourceKey)
}

// EvidenceKeysURL is the URL listing the evidence keys the service reads.
func (d *Dispatcher) EvidenceKeysURL() string {
	return d.baseURL + "evidencekeys"
}

func (d *Dispatcher) endpointFor(u string) Endpoint {
	switch u {
	case d.PropertiesURL():
		return EndpointProperties
	case d.EvidenceKeysURL():
		return EndpointEvidenceKeys
	default:
		return EndpointProcess
	}
}

// Send performs a call and returns the raw body of a successful response.
// Any other outcome is returned as a *CloudRequestError.
func (d *Dispatcher) Send(ctx context.Context, method, u string, body []byte) ([]byte, error) {
	return d.send(ctx, Call{Endpoint: d.endpointFor(u), Method: method, URL: u}, body)
}

func (d *Dispatcher) send(ctx context.Context, call Call, body []byte) ([]byte, error) {
	req := &transport.Request{
		Method: call.Method,
		URL:    call.URL,
		Body:   body,
		Header: make(http.Header),
	}
	if d.origin != "" {
		req.Header.Set("Origin", d.origin)
	}
	if call.Method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := d.transport.Do(ctx, req)
	call.Duration = time.Since(start)

	data, err := classify(call.URL, resp, err)
	if resp != nil {
		call.StatusCode = resp.StatusCode
	}
	call.Err = err
	d.observer.ObserveCall(ctx, call)

	if err != nil {
		d.logger.Debug("cloud call failed",
			"endpoint", call.Endpoint,
			"status", call.StatusCode,
			"duration", call.Duration,
			"error", err,
		)
		return nil, err
	}
	d.logger.Debug("cloud call completed",
		"endpoint", call.Endpoint,
		"status", call.StatusCode,
		"duration", call.Duration,
		"bytes", len(data),
	)
	return data, nil
}

// classify turns a transport outcome into a body or a *CloudRequestError.
func classify(u string, resp *transport.Response, transportErr error) ([]byte, error) {
	if transportErr != nil || resp == nil {
		return nil, &CloudRequestError{
			URL:     u,
			Header:  http.Header{},
			Message: fmt.Sprintf(MessageTransportFailure, u),
			Cause:   transportErr,
		}
	}

	header := resp.Header
	if header == nil {
		header = http.Header{}
	}
	serviceErrs := parseServiceErrors(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &CloudRequestError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Header:     header,
			Body:       resp.Body,
			Errors:     serviceErrs,
			Message:    fmt.Sprintf(MessageErrorCodeReturned, u, resp.StatusCode, string(resp.Body)),
		}
	}

	if len(serviceErrs) > 0 {
		return nil, &CloudRequestError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Header:     header,
			Body:       resp.Body,
			Errors:     serviceErrs,
			Message:    serviceErrorMessage(serviceErrs),
		}
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, &CloudRequestError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Header:     header,
			Message:    fmt.Sprintf(MessageNoDataInResponse, u),
		}
	}

	return resp.Body, nil
}

// parseServiceErrors extracts the "errors" array from a JSON object body.
// Bodies that are not JSON objects have no service errors.
func parseServiceErrors(body []byte) []string {
	var envelope struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	errs := make([]string, 0, len(envelope.Errors))
	for _, raw := range envelope.Errors {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			msg = string(raw)
		}
		errs = append(errs, msg)
	}
	return errs
}
