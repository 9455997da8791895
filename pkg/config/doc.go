// Package config loads cloudengine configuration from YAML files and the
// environment.
//
// Loading happens in four steps: start from Default(), overlay the YAML file,
// apply CLOUDENGINE_* environment overrides, then validate. A missing resource
// key is not a validation error here; the cloud engine reports it when it is
// constructed.
//
// Example file:
//
//	cloud:
//	  resource_key: "AQS5HKcyHJbECm6E10g"
//	  endpoint: "https://cloud.51degrees.com/api/v4/"
//	  timeout: 10s
//	  max_retries: 2
//	  modules: [device, location]
//	server:
//	  listen_address: "127.0.0.1:8080"
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//	  metrics:
//	    enabled: true
//	journal:
//	  enabled: true
//	  backend: sqlite
//	  sqlite:
//	    path: data/journal.db
//	  retention:
//	    days: 30
//	    schedule: "0 3 * * *"
package config
