package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, stg pipelineStage, run *production.Run, stageErr error, elapsed time.Duration) error {
	logger = logger.With(logging.String(logging.FieldComponent, "workflow-manager"))
	if stageErr == nil {
		stageErr = errors.New(stg.name + " failed without error detail")
	}

	from := run.Status
	message := services.StatusMessage(stageErr)
	if errors.Is(stageErr, context.Canceled) {
		message = "run canceled during " + string(from)
	}
	run.Status = production.StatusFailed
	run.Message = message
	run.SetProgress(deriveStageLabel(production.StatusFailed), message, run.Progress().Percent)

	logger.Error("stage failed",
		logging.String("resolved_status", string(production.StatusFailed)),
		logging.String("failed_status", string(from)),
		logging.String("error_message", message),
		logging.String("error_kind", services.Kind(stageErr)),
		logging.Alert("stage_failure"),
		logging.String(logging.FieldErrorHint, failureHint(stageErr)),
		logging.Error(stageErr),
		logging.Duration("stage_duration", elapsed),
		logging.String(logging.FieldEventType, "stage_failure"),
	)

	// the run context may already be canceled; the failure must still land
	persistCtx := context.WithoutCancel(ctx)
	if err := m.journal.RecordTransition(persistCtx, run.ID, from, run.Status, elapsed, message); err != nil {
		logger.Warn("failed to record failure transition", logging.Error(err))
	}
	if err := m.journal.UpdateRun(persistCtx, run); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	m.setLastRun(run)
	m.setLastError(stageErr)
	m.notifyStageError(ctx, logger, from, run, stageErr)
	return stageErr
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "the run was interrupted; start it again"
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrNotFound):
		return "check the files and flags passed to produce"
	case errors.Is(err, services.ErrConfiguration):
		return "check the config file and directory permissions"
	case errors.Is(err, services.ErrExternalTool):
		return "check that ffmpeg and ffprobe are installed and can read the upload"
	case errors.Is(err, services.ErrSynthesis):
		return "check API keys, quotas and the collaborator endpoints"
	case errors.Is(err, services.ErrDecode):
		return "the narration payload is neither a supported container nor raw pcm"
	case errors.Is(err, services.ErrAssetUnavailable):
		return "check scene files or raise render.asset_timeout_seconds"
	case errors.Is(err, services.ErrCapture):
		return "inspect the run log for encoder output"
	default:
		return "inspect the run log for details"
	}
}
