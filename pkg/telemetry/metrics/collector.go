package metrics

import (
	"context"
	"net/http"

	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/config"
	"mercator-hq/cloudengine/pkg/evidence"
	"mercator-hq/cloudengine/pkg/properties"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for cloud_requests_total.
const (
	OutcomeSuccess        = "success"
	OutcomeTransportError = "transport_error"
	OutcomeStatusError    = "status_error"
	OutcomeServiceError   = "service_error"
)

// Collector records cloud engine metrics into a private registry.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	conflictsTotal  prometheus.Counter
	lookupsTotal    *prometheus.CounterVec
}

var (
	_ cloud.Observer            = (*Collector)(nil)
	_ properties.LookupObserver = (*Collector)(nil)
)

// NewCollector creates a collector with a fresh registry. A disabled
// configuration yields a collector whose observe methods do nothing.
func NewCollector(cfg *config.MetricsConfig) *Collector {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}
	buckets := cfg.RequestDurationBuckets
	if len(buckets) == 0 {
		buckets = config.DefaultRequestDurationBuckets
	}

	c := &Collector{
		enabled:  cfg.Enabled,
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cloud_requests_total",
				Help:      "Total number of calls to the cloud service",
			},
			[]string{"endpoint", "outcome"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cloud_request_duration_seconds",
				Help:      "Duration of calls to the cloud service in seconds",
				Buckets:   buckets,
			},
			[]string{"endpoint"},
		),
		conflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evidence_conflicts_total",
				Help:      "Total number of evidence conflicts resolved by precedence",
			},
		),
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: cfg.Subsystem,
				Name:      "property_lookups_total",
				Help:      "Total number of property lookups by outcome",
			},
			[]string{"module", "outcome"},
		),
	}

	c.registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.conflictsTotal,
		c.lookupsTotal,
	)
	return c
}

// ObserveCall records a completed cloud call.
func (c *Collector) ObserveCall(_ context.Context, call cloud.Call) {
	if !c.enabled {
		return
	}
	endpoint := string(call.Endpoint)
	c.requestsTotal.WithLabelValues(endpoint, CallOutcome(call)).Inc()
	c.requestDuration.WithLabelValues(endpoint).Observe(call.Duration.Seconds())
}

// ObserveConflicts counts resolved evidence conflicts.
func (c *Collector) ObserveConflicts(_ context.Context, conflicts []evidence.Conflict) {
	if !c.enabled || len(conflicts) == 0 {
		return
	}
	c.conflictsTotal.Add(float64(len(conflicts)))
}

// ObserveLookup counts a property lookup.
func (c *Collector) ObserveLookup(module string, kind properties.Kind) {
	if !c.enabled {
		return
	}
	c.lookupsTotal.WithLabelValues(module, kind.String()).Inc()
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// CallOutcome classifies a call for the outcome label.
func CallOutcome(call cloud.Call) string {
	switch {
	case call.Err == nil:
		return OutcomeSuccess
	case call.StatusCode == 0:
		return OutcomeTransportError
	case call.StatusCode < 200 || call.StatusCode > 299:
		return OutcomeStatusError
	default:
		return OutcomeServiceError
	}
}
