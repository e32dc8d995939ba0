package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/stage"
)

func (m *Manager) executeStage(ctx context.Context, base *slog.Logger, stg pipelineStage, run *production.Run) error {
	from := run.Status
	if !production.CanTransition(from, stg.status) {
		return fmt.Errorf("invalid transition %s -> %s", from, stg.status)
	}

	stageCtx := withStageContext(ctx, string(stg.status), uuid.NewString())
	stageLogger := logging.WithContext(stageCtx, base)
	m.setRunProcessingState(run, stg.status)
	if err := m.journal.UpdateRun(stageCtx, run); err != nil {
		wrapped := fmt.Errorf("persist processing transition: %w", err)
		stageLogger.Error("failed to transition run to processing", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	m.setLastRun(run)

	handler := stg.handler
	if handler == nil {
		stageLogger.Info("stage skipped",
			logging.String(logging.FieldEventType, "stage_skip"),
			logging.String("reason", "no handler configured"),
		)
		run.SetProgressComplete(deriveStageLabel(stg.status), "Skipped")
		return m.recordTransition(stageCtx, stageLogger, run, from, 0, "skipped")
	}
	if aware, ok := handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("stage_handler", stg.name),
		logging.String("from_status", string(from)),
	)

	if err := handler.Prepare(stageCtx, run); err != nil {
		return m.handleStageFailure(stageCtx, stageLogger, stg, run, err, time.Since(stageStart))
	}
	if err := m.executeWithProgress(stageCtx, handler, run); err != nil {
		return m.handleStageFailure(stageCtx, stageLogger, stg, run, err, time.Since(stageStart))
	}

	if stg.status == production.StatusGeneratingImages && len(run.Assets) > 0 {
		if err := m.journal.RecordAssets(stageCtx, run.ID, run.Assets); err != nil {
			stageLogger.Warn("failed to record scene inventory",
				logging.Error(err),
				logging.String(logging.FieldImpact, "runs show will not list scenes for this run"),
			)
		}
	}

	elapsed := time.Since(stageStart)
	progress := run.Progress()
	if err := m.recordTransition(stageCtx, stageLogger, run, from, elapsed, progress.Message); err != nil {
		return err
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("progress_stage", progress.Stage),
		logging.String("progress_message", progress.Message),
		logging.Duration("stage_duration", elapsed),
	)
	return nil
}

func (m *Manager) recordTransition(ctx context.Context, logger *slog.Logger, run *production.Run, from production.Status, elapsed time.Duration, detail string) error {
	if err := m.journal.RecordTransition(ctx, run.ID, from, run.Status, elapsed, detail); err != nil {
		logger.Warn("failed to record transition", logging.Error(err))
	}
	if err := m.journal.UpdateRun(ctx, run); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		logger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	m.setLastRun(run)
	return nil
}

func (m *Manager) executeWithProgress(ctx context.Context, handler stage.Handler, run *production.Run) error {
	flushCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go m.flusher.StartLoop(flushCtx, &wg, run)

	err := handler.Execute(ctx, run)
	cancel()
	wg.Wait()
	return err
}

func (m *Manager) setRunProcessingState(run *production.Run, status production.Status) {
	run.Status = status
	run.Message = ""
	label := deriveStageLabel(status)
	run.SetProgress(label, label+" started", 0)
}
