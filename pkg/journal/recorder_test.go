package journal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/config"
	"mercator-hq/cloudengine/pkg/telemetry/logging"

	"go.uber.org/goleak"
)

type failingStorage struct {
	*MemoryStorage
}

func (failingStorage) Store(context.Context, *Record) error {
	return errors.New("disk full")
}

func TestRecorder_ObserveCall(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := NewMemoryStorage(0)
	rec := NewRecorder(store, config.JournalConfig{AsyncBuffer: 10}, logging.NewRedactor("AQS5HKcyHJbechH"))

	ctx := logging.WithRequestID(context.Background(), "req-42")
	rec.ObserveCall(ctx, cloud.Call{
		Endpoint:   cloud.EndpointProcess,
		Method:     "POST",
		URL:        "https://cloud.example/api/v4/AQS5HKcyHJbechH.json",
		StatusCode: 200,
		Duration:   15 * time.Millisecond,
		Conflicts:  1,
	})
	rec.ObserveCall(ctx, cloud.Call{
		Endpoint:   cloud.EndpointProperties,
		Method:     "GET",
		URL:        "https://cloud.example/api/v4/accessibleProperties?resource=AQS5HKcyHJbechH",
		StatusCode: 403,
		Err:        errors.New("forbidden for AQS5HKcyHJbechH"),
	})

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	records, err := store.Query(context.Background(), nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, r := range records {
		if r.ID == "" || r.RequestID != "req-42" {
			t.Errorf("record ids = %q/%q", r.ID, r.RequestID)
		}
		if strings.Contains(r.URL, "AQS5HKcyHJbechH") || strings.Contains(r.Error, "AQS5HKcyHJbechH") {
			t.Errorf("resource key stored in %+v", r)
		}
	}

	var process, props *Record
	for _, r := range records {
		switch r.Endpoint {
		case "process":
			process = r
		case "properties":
			props = r
		}
	}
	if process == nil || process.Conflicts != 1 || process.Failed() {
		t.Errorf("process record = %+v", process)
	}
	if props == nil || !props.Failed() || props.StatusCode != 403 {
		t.Errorf("properties record = %+v", props)
	}
}

func TestRecorder_EnqueueAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rec := NewRecorder(NewMemoryStorage(0), config.JournalConfig{}, nil)
	_ = rec.Close()
	_ = rec.Close()

	if err := rec.Enqueue(&Record{ID: "x"}); !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("Enqueue() error = %v, want ErrRecorderClosed", err)
	}
	// Observing after close must not panic.
	rec.ObserveCall(context.Background(), cloud.Call{Endpoint: cloud.EndpointProcess})
}

func TestRecorder_StoreFailureIsLogged(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rec := NewRecorder(failingStorage{NewMemoryStorage(0)}, config.JournalConfig{AsyncBuffer: 1}, nil)
	rec.ObserveCall(context.Background(), cloud.Call{Endpoint: cloud.EndpointProcess, StatusCode: 200})
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
