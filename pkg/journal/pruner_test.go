package journal

import (
	"context"
	"testing"
	"time"

	"mercator-hq/cloudengine/pkg/config"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestPruner_Prune(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.RetentionConfig
		wantDeleted int64
		wantLeft    []string
	}{
		{"disabled", config.RetentionConfig{}, 0, []string{"r4", "r3", "r2", "r1"}},
		{"by age", config.RetentionConfig{Days: 1}, 2, []string{"r4", "r3"}},
		{"by count", config.RetentionConfig{MaxRecords: 1}, 3, []string{"r4"}},
		{"age then count", config.RetentionConfig{Days: 1, MaxRecords: 1}, 3, []string{"r4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStorage(0)
			seed(t, store)

			p := NewPruner(store, tt.cfg)
			// One day after r3 was recorded: r1 and r2 are older than the cutoff.
			p.now = func() time.Time { return base.Add(24*time.Hour + 90*time.Second) }

			deleted, err := p.Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() error = %v", err)
			}
			if deleted != tt.wantDeleted {
				t.Errorf("deleted = %d, want %d", deleted, tt.wantDeleted)
			}
			left, _ := store.Query(context.Background(), nil)
			if diff := cmp.Diff(tt.wantLeft, ids(left)); diff != "" {
				t.Errorf("remaining mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScheduler(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := NewPruner(NewMemoryStorage(0), config.RetentionConfig{Days: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(p, "0 3 * * *")
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.IsRunning() {
		t.Error("scheduler should be running")
	}
	next := s.NextRun()
	if next == nil || next.Hour() != 3 {
		t.Errorf("NextRun() = %v, want 03:00", next)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("scheduler did not stop on cancellation")
	}
}

func TestScheduler_EmptyAndInvalid(t *testing.T) {
	p := NewPruner(NewMemoryStorage(0), config.RetentionConfig{})

	empty := NewScheduler(p, "")
	if err := empty.Start(context.Background()); err != nil || empty.IsRunning() {
		t.Errorf("empty schedule: err = %v, running = %v", err, empty.IsRunning())
	}

	if err := NewScheduler(p, "every day").Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
