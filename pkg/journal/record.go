package journal

import (
	"time"

	"github.com/google/uuid"
)

// Record is one journaled cloud call.
type Record struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id,omitempty"`
	Endpoint  string `json:"endpoint"`
	Method    string `json:"method"`
	// URL has resource keys redacted.
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration_ns"`
	Conflicts  int           `json:"conflicts"`
	// Error is empty for successful calls.
	Error string    `json:"error,omitempty"`
	Time  time.Time `json:"time"`
}

// Failed reports whether the call ended in an error.
func (r *Record) Failed() bool {
	return r.Error != ""
}

// NewRecordID returns a fresh record identifier.
func NewRecordID() string {
	return uuid.NewString()
}

// Status filters for Query.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Query filters journal records. Zero values match everything.
type Query struct {
	Since    *time.Time
	Until    *time.Time
	Endpoint string
	// Status is "", StatusSuccess or StatusError.
	Status    string
	RequestID string

	// Limit defaults to DefaultQueryLimit when zero.
	Limit  int
	Offset int
}

// DefaultQueryLimit caps unbounded queries.
const DefaultQueryLimit = 100

func (q *Query) limit() int {
	if q == nil || q.Limit <= 0 {
		return DefaultQueryLimit
	}
	return q.Limit
}

func (q *Query) matches(r *Record) bool {
	if q == nil {
		return true
	}
	if q.Since != nil && r.Time.Before(*q.Since) {
		return false
	}
	if q.Until != nil && r.Time.After(*q.Until) {
		return false
	}
	if q.Endpoint != "" && r.Endpoint != q.Endpoint {
		return false
	}
	if q.RequestID != "" && r.RequestID != q.RequestID {
		return false
	}
	switch q.Status {
	case StatusSuccess:
		return !r.Failed()
	case StatusError:
		return r.Failed()
	}
	return true
}
