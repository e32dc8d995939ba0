package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/production"
)

func (m *Manager) notifyStageError(ctx context.Context, logger *slog.Logger, failed production.Status, run *production.Run, stageErr error) {
	if m.notifier == nil || stageErr == nil || errors.Is(stageErr, context.Canceled) {
		return
	}
	label := fmt.Sprintf("%s (run %s)", failed, shortID(run.ID))
	if err := m.notifier.Publish(context.WithoutCancel(ctx), notifications.EventError, notifications.Payload{
		"error":   run.Message,
		"context": label,
	}); err != nil {
		logger.Debug("stage error notification failed", logging.Error(err))
	}
}

func (m *Manager) notifyRunCompleted(ctx context.Context, logger *slog.Logger, run *production.Run) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, notifications.EventRunCompleted, notifications.Payload{
		"title": run.Title(),
		"path":  run.OutputPath,
		"size":  run.Artifact.SizeBytes,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not send completion notification")
		} else {
			logger.Debug("completion notification failed", logging.Error(err))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
