// Cloudengine sends device evidence to the cloud detection service and
// exposes the properties it returns.
//
// Usage:
//
//	# Resolve properties for a User-Agent
//	cloudengine process -e header.user-agent="Mozilla/5.0 (iPhone...)"
//
//	# List the properties available to the resource key
//	cloudengine properties
//
//	# Serve the HTTP API
//	cloudengine serve --config /etc/cloudengine/config.yaml
//
//	# Inspect the call journal
//	cloudengine journal list --since 24h --status error
package main

func main() {
	Execute()
}
