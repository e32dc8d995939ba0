package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

// Run executes every configured stage for inputs. The run is returned even
// when a stage fails; the error is that stage's failure. Only one run may
// execute at a time.
func (m *Manager) Run(ctx context.Context, inputs production.Inputs) (*production.Run, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return nil, errors.New("workflow stages not configured")
	}
	stages := append([]pipelineStage(nil), m.stages...)
	m.running = true
	m.lastErr = nil
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	run := production.New(uuid.NewString(), inputs)
	run.StagingDir = filepath.Join(m.cfg.Paths.StagingDir, run.ID)
	defer run.Release()

	runCtx := services.WithRunID(ctx, run.ID)
	m.setLastRunLog("")
	base := m.runLogger(run)
	logger := logging.WithContext(runCtx, base)
	if err := m.journal.CreateRun(runCtx, run); err != nil {
		m.setLastError(err)
		return run, fmt.Errorf("journal run: %w", err)
	}
	m.setLastRun(run)

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("topic", strings.TrimSpace(inputs.Topic)),
		logging.String("video_file", strings.TrimSpace(inputs.VideoPath)),
		logging.Int("images", len(inputs.ImagePaths)),
		logging.Bool("narration_uploaded", run.HasNarration()),
		logging.String("staging_dir", run.StagingDir),
	)
	for _, h := range stage.Unready(stageHealth(runCtx, stages)) {
		logging.WarnWithContext(logger, "stage reports not ready", "stage_health",
			logging.String("stage_name", h.Name),
			logging.String("detail", h.Detail),
			logging.String(logging.FieldImpact, "the run may fail when this stage executes"),
		)
	}

	started := time.Now()
	for _, stg := range stages {
		if err := m.executeStage(runCtx, base, stg, run); err != nil {
			return run, err
		}
	}
	return run, m.completeRun(runCtx, logger, run, time.Since(started))
}

func (m *Manager) completeRun(ctx context.Context, logger *slog.Logger, run *production.Run, elapsed time.Duration) error {
	from := run.Status
	run.Status = production.StatusCompleted
	run.Message = ""
	run.SetProgressComplete(deriveStageLabel(production.StatusCompleted), "Video ready")
	if err := m.journal.RecordTransition(ctx, run.ID, from, run.Status, 0, run.OutputPath); err != nil {
		logger.Warn("failed to record completion", logging.Error(err))
	}
	if err := m.journal.UpdateRun(ctx, run); err != nil {
		wrapped := fmt.Errorf("persist run completion: %w", err)
		logger.Error("failed to persist run completion", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	m.setLastRun(run)

	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("title", run.Title()),
		logging.String("output_file", run.OutputPath),
		logging.String("size", humanize.Bytes(uint64(max(run.Artifact.SizeBytes, 0)))),
		logging.Duration("video_duration", run.Artifact.Duration()),
		logging.Duration("run_duration", elapsed),
	)
	m.notifyRunCompleted(ctx, logger, run)
	return nil
}
