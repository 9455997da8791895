package journal

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/cloudengine/pkg/config"
)

// Storage persists journal records. Implementations must be safe for
// concurrent use.
type Storage interface {
	Store(ctx context.Context, record *Record) error

	// Query returns matching records, newest first.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	Count(ctx context.Context, query *Query) (int64, error)

	// DeleteOlderThan removes records strictly older than cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteOldest removes up to n of the oldest records.
	DeleteOldest(ctx context.Context, n int64) (int64, error)

	Close() error
}

// StorageError wraps a backend failure.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("journal storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Open creates the backend selected by cfg.Backend.
func Open(cfg config.JournalConfig) (Storage, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStorage(cfg.MemoryMaxRecords), nil
	case "sqlite":
		return NewSQLiteStorage(cfg.SQLite)
	default:
		return nil, fmt.Errorf("unknown journal backend %q", cfg.Backend)
	}
}
