package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reelsmith/internal/journal"
	"reelsmith/internal/logging"
	"reelsmith/internal/production"
)

// ProgressFlusher copies a run's progress into the journal while a stage
// executes, so `reelsmith runs` shows live progress.
type ProgressFlusher struct {
	journal  *journal.Journal
	logger   *slog.Logger
	interval time.Duration
}

// NewProgressFlusher creates a flusher. A non-positive interval disables it.
func NewProgressFlusher(j *journal.Journal, logger *slog.Logger, interval time.Duration) *ProgressFlusher {
	return &ProgressFlusher{journal: j, logger: logger, interval: interval}
}

// StartLoop flushes run progress on every tick until ctx ends. Unchanged
// progress is not rewritten.
func (f *ProgressFlusher) StartLoop(ctx context.Context, wg *sync.WaitGroup, run *production.Run) {
	defer wg.Done()
	if f == nil || f.journal == nil || f.interval <= 0 {
		return
	}
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(f.logger, "workflow-progress"))
	var last production.Progress
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := run.Progress()
			if current == last {
				continue
			}
			if err := f.journal.UpdateProgress(ctx, run.ID, current); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Debug("stage finished, progress flush cancelled")
				} else {
					logger.Warn("progress flush failed", logging.Error(err))
				}
				continue
			}
			last = current
		}
	}
}
