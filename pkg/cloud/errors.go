package cloud

import (
	"fmt"
	"net/http"
	"strings"
)

// Messages used when building CloudRequestError values.
const (
	MessageNoDataInResponse   = "No data in response from cloud service at %s"
	MessageErrorCodeReturned  = "Cloud service at '%s' returned status code '%d' with content %s"
	MessageCloudError         = "Error returned from cloud service: '%s'"
	MessageCloudErrorMultiple = "Multiple errors returned from cloud service: %s"
	MessageTransportFailure   = "Request to cloud service at '%s' failed"
)

// ConfigError is returned by New when the engine cannot be constructed.
type ConfigError struct {
	// Field is the configuration field that is missing or invalid
	Field string

	// Message describes the problem
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("cloud engine configuration error (%s): %s", e.Field, e.Message)
}

// CloudRequestError is any non-success outcome of a call to the cloud
// service.
type CloudRequestError struct {
	// URL is the request URL
	URL string

	// StatusCode is the HTTP status, or 0 if no response was received
	StatusCode int

	// Header holds the response headers (empty if no response was received)
	Header http.Header

	// Body is the raw response body
	Body []byte

	// Errors are the messages reported by the service in its "errors" array
	Errors []string

	// Message is the human-readable description
	Message string

	// Cause is the transport error, if any
	Cause error
}

// Error implements the error interface.
func (e *CloudRequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying transport error.
func (e *CloudRequestError) Unwrap() error {
	return e.Cause
}

func serviceErrorMessage(errs []string) string {
	if len(errs) == 1 {
		return fmt.Sprintf(MessageCloudError, errs[0])
	}
	quoted := make([]string, len(errs))
	for i, msg := range errs {
		quoted[i] = "'" + msg + "'"
	}
	return fmt.Sprintf(MessageCloudErrorMultiple, strings.Join(quoted, ", "))
}
