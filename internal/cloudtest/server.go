// Package cloudtest provides an in-process fake of the cloud service for
// tests.
package cloudtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// ResourceKey is the resource key the default fixtures answer for.
const ResourceKey = "resource_key"

// Fixture bodies in the shape the service returns.
const (
	EvidenceKeysBody = `["query.User-Agent","header.User-Agent","cookie.51D_ProfileIds"]`

	PropertiesBody = `{
  "Products": {
    "device": {
      "DataTier": "CloudV4TAC",
      "Properties": [
        {"Name": "IsMobile", "Type": "Boolean", "Category": "Device"},
        {"Name": "IsTablet", "Type": "Boolean", "Category": "Device"},
        {"Name": "HardwareVendor", "Type": "String", "Category": "Device"}
      ]
    },
    "devices": {
      "DataTier": "CloudV4TAC",
      "Properties": [
        {
          "Name": "Devices",
          "Type": "Array",
          "Category": "Unspecified",
          "ItemProperties": [
            {"Name": "IsMobile", "Type": "Boolean", "Category": "Device"},
            {"Name": "IsTablet", "Type": "Boolean", "Category": "Device"}
          ]
        }
      ]
    }
  }
}`

	ProcessBody = `{
  "device": {
    "ismobile": true,
    "istablet": null,
    "istabletnullreason": "The results contained a null profile for the component which the required property belongs to.",
    "hardwarevendor": "Apple"
  },
  "javascriptProperties": []
}`
)

// Response is a canned reply for one path.
type Response struct {
	StatusCode int
	Body       any
	Headers    map[string]string
	Delay      time.Duration
}

// Request is what the server received.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Header http.Header
}

// Server is a fake cloud service backed by httptest.
type Server struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]Response
	counts    map[string]int
	requests  []Request
}

// NewServer starts a fake service with the default fixtures registered for
// ResourceKey.
func NewServer() *Server {
	s := &Server{
		responses: make(map[string]Response),
		counts:    make(map[string]int),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handler))

	s.SetResponse("/evidencekeys", Response{StatusCode: http.StatusOK, Body: EvidenceKeysBody})
	s.SetResponse("/accessibleProperties", Response{StatusCode: http.StatusOK, Body: PropertiesBody})
	s.SetResponse(ProcessPath(ResourceKey), Response{StatusCode: http.StatusOK, Body: ProcessBody})
	return s
}

// ProcessPath is the path of the processing call for a resource key.
func ProcessPath(resourceKey string) string {
	return "/" + resourceKey + ".json"
}

// URL returns the base URL, without a trailing slash.
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down.
func (s *Server) Close() {
	s.server.Close()
}

// SetResponse replaces the reply for path.
func (s *Server) SetResponse(path string, resp Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[path] = resp
}

// Count returns the number of requests received for path.
func (s *Server) Count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[path]
}

// Requests returns every request received, in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request for path.
func (s *Server) LastRequest(path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	form, _ := url.ParseQuery(string(body))

	s.mu.Lock()
	s.counts[r.URL.Path]++
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Form:   form,
		Header: r.Header.Clone(),
	})
	resp, ok := s.responses[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)

	switch v := resp.Body.(type) {
	case nil:
	case string:
		_, _ = w.Write([]byte(v))
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}
