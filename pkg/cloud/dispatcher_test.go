package cloud

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"mercator-hq/cloudengine/pkg/cloud/transport"
)

func TestDispatcher_URLs(t *testing.T) {
	d := NewDispatcher("https://cloud.example/api/v4", "ABC", "", transport.Func(nil), nil, nil)

	tests := map[string]string{
		d.ProcessURL():      "https://cloud.example/api/v4/ABC.json?",
		d.PropertiesURL():   "https://cloud.example/api/v4/accessibleProperties?resource=ABC",
		d.EvidenceKeysURL(): "https://cloud.example/api/v4/evidencekeys",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}

	if d.endpointFor(d.PropertiesURL()) != EndpointProperties ||
		d.endpointFor(d.EvidenceKeysURL()) != EndpointEvidenceKeys ||
		d.endpointFor(d.ProcessURL()) != EndpointProcess {
		t.Error("endpointFor misclassified a URL")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		resp       *transport.Response
		wantErr    bool
		wantInMsg  string
		wantStatus int
	}{
		{
			name: "success",
			resp: &transport.Response{StatusCode: 200, Body: []byte(`{"device":{}}`)},
		},
		{
			name: "success array body",
			resp: &transport.Response{StatusCode: 200, Body: []byte(`["query.user-agent"]`)},
		},
		{
			name:       "empty errors array is success",
			resp:       &transport.Response{StatusCode: 200, Body: []byte(`{"errors":[],"device":{}}`)},
			wantStatus: 200,
		},
		{
			name:       "errors on 2xx",
			resp:       &transport.Response{StatusCode: 200, Body: []byte(`{"errors":["bad key"]}`)},
			wantErr:    true,
			wantInMsg:  "bad key",
			wantStatus: 200,
		},
		{
			name:       "non-2xx with usable json",
			resp:       &transport.Response{StatusCode: 500, Body: []byte(`{"device":{}}`)},
			wantErr:    true,
			wantInMsg:  "returned status code '500'",
			wantStatus: 500,
		},
		{
			name:       "whitespace body",
			resp:       &transport.Response{StatusCode: 204, Body: []byte("  \n")},
			wantErr:    true,
			wantInMsg:  "No data in response",
			wantStatus: 204,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := classify("http://x/k.json?", tt.resp, nil)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("classify() error = %v", err)
				}
				if string(body) != string(tt.resp.Body) {
					t.Errorf("body = %s, want raw body", body)
				}
				return
			}

			reqErr, ok := err.(*CloudRequestError)
			if !ok {
				t.Fatalf("classify() error = %v, want *CloudRequestError", err)
			}
			if !strings.Contains(reqErr.Error(), tt.wantInMsg) {
				t.Errorf("error %q does not contain %q", reqErr.Error(), tt.wantInMsg)
			}
			if reqErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", reqErr.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestDispatcher_SendSetsHeaders(t *testing.T) {
	var got *transport.Request
	d := NewDispatcher("http://x/", "k", "example.com", transport.Func(
		func(_ context.Context, req *transport.Request) (*transport.Response, error) {
			got = req
			return &transport.Response{StatusCode: http.StatusOK, Body: []byte(`[]`)}, nil
		}), nil, nil)

	if _, err := d.Send(context.Background(), http.MethodGet, d.EvidenceKeysURL(), nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.Header.Get("Origin") != "example.com" {
		t.Errorf("Origin = %q", got.Header.Get("Origin"))
	}
	if got.Header.Get("Content-Type") != "" {
		t.Error("GET requests must not carry a form content type")
	}
}
