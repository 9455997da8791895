package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/cloudengine/pkg/config"
)

// Pruner enforces journal retention.
type Pruner struct {
	storage Storage
	days    int
	max     int64
	now     func() time.Time
	logger  *slog.Logger
}

// NewPruner creates a pruner for the given retention settings.
func NewPruner(storage Storage, cfg config.RetentionConfig) *Pruner {
	return &Pruner{
		storage: storage,
		days:    cfg.Days,
		max:     cfg.MaxRecords,
		now:     time.Now,
		logger:  slog.Default().With("component", "journal.retention"),
	}
}

// Prune deletes records older than the retention period, then the oldest
// records beyond the record cap. It returns the number of records deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.days > 0 {
		cutoff := p.now().AddDate(0, 0, -p.days)
		deleted, err := p.storage.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune by age failed: %w", err)
		}
		total += deleted
		p.logger.Debug("pruned journal by age", "deleted_count", deleted, "retention_days", p.days)
	}

	if p.max > 0 {
		count, err := p.storage.Count(ctx, nil)
		if err != nil {
			return total, fmt.Errorf("failed to count records: %w", err)
		}
		if count > p.max {
			deleted, err := p.storage.DeleteOldest(ctx, count-p.max)
			if err != nil {
				return total, fmt.Errorf("prune by count failed: %w", err)
			}
			total += deleted
			p.logger.Debug("pruned journal by count", "deleted_count", deleted, "max_records", p.max)
		}
	}

	if total > 0 {
		p.logger.Info("journal pruning completed",
			"total_deleted", total,
			"retention_days", p.days,
			"max_records", p.max,
		)
	}
	return total, nil
}
