package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/textutil"
)

// RunLogger manages the dedicated log file of each run.
type RunLogger struct {
	baseDir string
	cfg     *config.Config
}

// NewRunLogger creates a run logger rooted at <log_dir>/runs.
func NewRunLogger(cfg *config.Config) *RunLogger {
	dir := ""
	if cfg != nil && strings.TrimSpace(cfg.Paths.LogDir) != "" {
		dir = filepath.Join(cfg.Paths.LogDir, "runs")
	}
	return &RunLogger{baseDir: dir, cfg: cfg}
}

// Path returns the log file path for run and creates its directory.
func (r *RunLogger) Path(run *production.Run) (string, error) {
	if run == nil {
		return "", errors.New("run is nil")
	}
	if r.baseDir == "" {
		return "", errors.New("run log directory not configured")
	}
	if err := os.MkdirAll(r.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure run log directory: %w", err)
	}
	return filepath.Join(r.baseDir, r.filename(run)), nil
}

// CreateHandler builds a JSON slog.Handler writing to path.
func (r *RunLogger) CreateHandler(path string) (slog.Handler, error) {
	level := "info"
	if r.cfg != nil && strings.TrimSpace(r.cfg.Logging.Level) != "" {
		level = r.cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           "json",
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	})
	if err != nil {
		return nil, err
	}
	return logger.Handler(), nil
}

func (r *RunLogger) filename(run *production.Run) string {
	timestamp := run.CreatedAt.UTC().Format("20060102T150405")
	if run.CreatedAt.IsZero() {
		timestamp = time.Now().UTC().Format("20060102T150405")
	}
	id := run.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s.log", timestamp, id, textutil.Slug(run.Inputs.Topic, "untitled"))
}
