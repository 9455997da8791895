package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/config"
	"mercator-hq/cloudengine/pkg/evidence"
	"mercator-hq/cloudengine/pkg/properties"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestCollector() *Collector {
	return NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"})
}

func TestCallOutcome(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		call cloud.Call
		want string
	}{
		{"success", cloud.Call{StatusCode: 200}, OutcomeSuccess},
		{"transport", cloud.Call{Err: boom}, OutcomeTransportError},
		{"status", cloud.Call{StatusCode: 403, Err: boom}, OutcomeStatusError},
		{"service", cloud.Call{StatusCode: 200, Err: boom}, OutcomeServiceError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CallOutcome(tt.call); got != tt.want {
				t.Errorf("CallOutcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollector_ObserveCall(t *testing.T) {
	c := newTestCollector()
	ctx := context.Background()

	c.ObserveCall(ctx, cloud.Call{Endpoint: cloud.EndpointProcess, StatusCode: 200, Duration: 20 * time.Millisecond})
	c.ObserveCall(ctx, cloud.Call{Endpoint: cloud.EndpointProcess, StatusCode: 200, Duration: 30 * time.Millisecond})
	c.ObserveCall(ctx, cloud.Call{Endpoint: cloud.EndpointProperties, StatusCode: 500, Err: errors.New("x")})

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("process", OutcomeSuccess)); got != 2 {
		t.Errorf("process success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("properties", OutcomeStatusError)); got != 1 {
		t.Errorf("properties status_error = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.requestDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}

func TestCollector_ConflictsAndLookups(t *testing.T) {
	c := newTestCollector()

	c.ObserveConflicts(context.Background(), []evidence.Conflict{{Key: "header.user-agent"}, {Key: "cookie.x"}})
	c.ObserveConflicts(context.Background(), nil)
	if got := testutil.ToFloat64(c.conflictsTotal); got != 2 {
		t.Errorf("conflicts = %v, want 2", got)
	}

	c.ObserveLookup("device", properties.KindValue)
	c.ObserveLookup("device", properties.KindNoValue)
	c.ObserveLookup("device", properties.KindValue)
	if got := testutil.ToFloat64(c.lookupsTotal.WithLabelValues("device", "value")); got != 2 {
		t.Errorf("value lookups = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.lookupsTotal.WithLabelValues("device", "no_value")); got != 1 {
		t.Errorf("no_value lookups = %v, want 1", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	c := NewCollector(&config.MetricsConfig{Enabled: false})
	c.ObserveCall(context.Background(), cloud.Call{Endpoint: cloud.EndpointProcess, StatusCode: 200})
	c.ObserveLookup("device", properties.KindValue)

	if got := testutil.CollectAndCount(c.requestsTotal); got != 0 {
		t.Errorf("disabled collector recorded %d series", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := newTestCollector()
	c.ObserveCall(context.Background(), cloud.Call{Endpoint: cloud.EndpointEvidenceKeys, StatusCode: 200})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `test_cloud_requests_total{endpoint="evidencekeys",outcome="success"} 1`) {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
}
