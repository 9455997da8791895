package journal

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStorage keeps records in memory, oldest first. When maxRecords is
// positive the oldest records are evicted to stay within it.
type MemoryStorage struct {
	mu         sync.RWMutex
	records    []*Record
	maxRecords int
}

// NewMemoryStorage creates an in-memory backend.
func NewMemoryStorage(maxRecords int) *MemoryStorage {
	return &MemoryStorage{maxRecords: maxRecords}
}

func (s *MemoryStorage) Store(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	// Keep records sorted by time even when writes arrive out of order.
	i, _ := slices.BinarySearchFunc(s.records, cp.Time, func(r *Record, t time.Time) int {
		if r.Time.After(t) {
			return 1
		}
		return -1
	})
	s.records = slices.Insert(s.records, i, &cp)

	if s.maxRecords > 0 && len(s.records) > s.maxRecords {
		s.records = slices.Delete(s.records, 0, len(s.records)-s.maxRecords)
	}
	return nil
}

func (s *MemoryStorage) Query(_ context.Context, query *Query) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	offset := 0
	if query != nil {
		offset = query.Offset
	}
	limit := query.limit()

	var results []*Record
	skipped := 0
	for i := len(s.records) - 1; i >= 0 && len(results) < limit; i-- {
		r := s.records[i]
		if !query.matches(r) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		cp := *r
		results = append(results, &cp)
	}
	return results, nil
}

func (s *MemoryStorage) Count(_ context.Context, query *Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if query.matches(r) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStorage) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := 0
	for i < len(s.records) && s.records[i].Time.Before(cutoff) {
		i++
	}
	s.records = slices.Delete(s.records, 0, i)
	return int64(i), nil
}

func (s *MemoryStorage) DeleteOldest(_ context.Context, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		return 0, nil
	}
	if n > int64(len(s.records)) {
		n = int64(len(s.records))
	}
	s.records = slices.Delete(s.records, 0, int(n))
	return n, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
