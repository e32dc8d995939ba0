package workflow

import (
	"context"

	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/stage"
)

// RunSnapshot is a copy of the most recent run's state.
type RunSnapshot struct {
	ID       string
	Status   production.Status
	Message  string
	Progress production.Progress
	LogPath  string
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastRun     *RunSnapshot
	RunStats    map[production.Status]int
	StageHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	var last *RunSnapshot
	if m.lastRun != nil {
		snap := *m.lastRun
		last = &snap
	}
	stages := append([]pipelineStage(nil), m.stages...)
	m.mu.RUnlock()

	stats, err := m.journal.Stats(ctx)
	if err != nil {
		logging.NewComponentLogger(m.logger, "workflow").Warn("failed to read run stats", logging.Error(err))
	}

	summary := StatusSummary{Running: running, LastRun: last, RunStats: stats, StageHealth: stageHealth(ctx, stages)}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastRun(run *production.Run) {
	snapshot := RunSnapshot{
		ID:       run.ID,
		Status:   run.Status,
		Message:  run.Message,
		Progress: run.Progress(),
	}
	m.mu.Lock()
	snapshot.LogPath = m.pendingLog
	m.lastRun = &snapshot
	m.mu.Unlock()
}

func (m *Manager) setLastRunLog(path string) {
	m.mu.Lock()
	m.pendingLog = path
	m.mu.Unlock()
}

func stageHealth(ctx context.Context, stages []pipelineStage) map[string]stage.Health {
	health := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler == nil {
			continue
		}
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}
	return health
}
