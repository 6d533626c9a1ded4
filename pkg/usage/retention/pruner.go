// Package retention prunes old usage events from durable storage on a cron
// schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/conduit/pkg/usage/storage"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain usage events.
	// A negative value keeps events forever.
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string
}

// Pruner enforces the retention period on a usage backend.
type Pruner struct {
	backend storage.Backend
	config  Config
	now     func() time.Time
	logger  *slog.Logger
}

// NewPruner creates a pruner. A nil clock means time.Now.
func NewPruner(backend storage.Backend, config Config, now func() time.Time) *Pruner {
	if now == nil {
		now = time.Now
	}
	return &Pruner{
		backend: backend,
		config:  config,
		now:     now,
		logger:  slog.Default().With("component", "usage.retention"),
	}
}

// Cutoff returns the time before which events are pruned, and false when
// events are kept forever.
func (p *Pruner) Cutoff() (time.Time, bool) {
	if p.config.RetentionDays < 0 {
		return time.Time{}, false
	}
	return p.now().Add(-time.Duration(p.config.RetentionDays) * 24 * time.Hour), true
}

// Prune deletes events older than the retention period and returns how
// many were removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	cutoff, ok := p.Cutoff()
	if !ok {
		p.logger.Debug("retention disabled, nothing pruned")
		return 0, nil
	}

	deleted, err := p.backend.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune by age failed: %w", err)
	}

	if deleted > 0 {
		p.logger.Info("usage pruning completed",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
			"cutoff", cutoff,
		)
	} else {
		p.logger.Debug("no usage events pruned", "retention_days", p.config.RetentionDays)
	}
	return deleted, nil
}
