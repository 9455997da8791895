package cloud

import (
	"context"
	"time"

	"mercator-hq/cloudengine/pkg/evidence"
)

// Endpoint identifies which cloud API a call targeted.
type Endpoint string

const (
	EndpointProcess      Endpoint = "process"
	EndpointProperties   Endpoint = "properties"
	EndpointEvidenceKeys Endpoint = "evidencekeys"
)

// Call describes one completed call to the cloud service.
type Call struct {
	Endpoint   Endpoint
	Method     string
	URL        string
	StatusCode int
	Duration   time.Duration
	// Conflicts is the number of evidence conflicts resolved for a
	// process call.
	Conflicts int
	Err       error
}

// Observer receives call and conflict notifications. Implementations must be
// safe for concurrent use and must not block.
type Observer interface {
	ObserveCall(ctx context.Context, call Call)
	ObserveConflicts(ctx context.Context, conflicts []evidence.Conflict)
}

// Observers fans notifications out to several observers. Nil entries are
// skipped.
type Observers []Observer

func (o Observers) ObserveCall(ctx context.Context, call Call) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveCall(ctx, call)
		}
	}
}

func (o Observers) ObserveConflicts(ctx context.Context, conflicts []evidence.Conflict) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveConflicts(ctx, conflicts)
		}
	}
}

type nopObserver struct{}

func (nopObserver) ObserveCall(context.Context, Call)                      {}
func (nopObserver) ObserveConflicts(context.Context, []evidence.Conflict) {}
