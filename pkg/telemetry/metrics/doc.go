// Package metrics exposes Prometheus metrics for the cloud engine.
//
// A Collector owns its own registry and implements both cloud.Observer and
// properties.LookupObserver, so it can be handed directly to the engines:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics)
//	engine, _ := cloud.New(cloud.Config{ResourceKey: key, Observer: collector})
//	device := properties.NewEngine("device", engine, properties.WithObserver(collector))
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Metrics (namespace and subsystem from configuration):
//   - cloud_requests_total{endpoint,outcome}
//   - cloud_request_duration_seconds{endpoint}
//   - evidence_conflicts_total
//   - property_lookups_total{outcome}
package metrics
