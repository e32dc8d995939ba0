package workflow

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/services"
)

// runLogger returns the base logger shared by every stage of run. When run
// logs are enabled, records go to the process log and to the run's own file.
func (m *Manager) runLogger(run *production.Run) *slog.Logger {
	base := logging.NewComponentLogger(m.logger, "workflow")
	if m.runLogs != nil {
		path, err := m.runLogs.Path(run)
		if err != nil {
			base.Warn("run log unavailable", logging.Error(err))
		} else if handler, err := m.runLogs.CreateHandler(path); err != nil {
			base.Warn("failed to create run log writer", logging.Error(err))
		} else {
			base = logging.TeeLogger(base, handler)
			m.setLastRunLog(path)
		}
	}
	return base
}

func withStageContext(ctx context.Context, stageName, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if stageName != "" {
		ctx = services.WithStage(ctx, stageName)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}

func deriveStageLabel(status production.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
