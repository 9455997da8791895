package cloud

import (
	"log/slog"
	"os"
	"strings"

	"mercator-hq/cloudengine/pkg/cloud/transport"
)

const (
	// EnvEndPoint overrides the default endpoint when Config.EndPoint is empty.
	EnvEndPoint = "FOD_CLOUD_API_URL"

	// DefaultEndPoint is used when neither Config.EndPoint nor EnvEndPoint is set.
	DefaultEndPoint = "https://cloud.51degrees.com/api/v4/"

	// DataKey is the flow data slot holding the raw cloud response.
	DataKey = "cloud"
)

// Config configures an Engine.
type Config struct {
	// ResourceKey identifies the caller's subscription. Required.
	ResourceKey string

	// EndPoint is the base URL of the cloud service. Optional.
	EndPoint string

	// Origin is sent as the Origin header on every call when set.
	Origin string

	// Transport performs HTTP calls. Defaults to transport.HTTPTransport.
	Transport transport.Transport

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Observer is notified of every call to the cloud service.
	Observer Observer
}

// resolveEndPoint applies the endpoint precedence: explicit value,
// then the environment, then the default.
func resolveEndPoint(explicit string) string {
	endpoint := explicit
	if endpoint == "" {
		endpoint = os.Getenv(EnvEndPoint)
	}
	if endpoint == "" {
		endpoint = DefaultEndPoint
	}
	return NormalizeBaseURL(endpoint)
}

// NormalizeBaseURL makes sure the URL ends with a single trailing slash.
func NormalizeBaseURL(u string) string {
	if u == "" || strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
