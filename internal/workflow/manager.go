package workflow

import (
	"log/slog"
	"sync"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/journal"
	"reelsmith/internal/notifications"
)

const defaultProgressInterval = 2 * time.Second

// Manager coordinates a production run using registered stage handlers.
type Manager struct {
	cfg      *config.Config
	journal  *journal.Journal
	logger   *slog.Logger
	notifier notifications.Service
	flusher  *ProgressFlusher
	runLogs  *RunLogger

	mu         sync.RWMutex
	stages     []pipelineStage
	running    bool
	lastErr    error
	lastRun    *RunSnapshot
	pendingLog string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	notifier         notifications.Service
	progressInterval time.Duration
	runLogs          bool
}

// WithNotifier replaces the notifier built from configuration.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(o *managerOptions) {
		o.notifier = notifier
	}
}

// WithProgressInterval sets how often progress is flushed to the journal
// while a stage executes.
func WithProgressInterval(interval time.Duration) ManagerOption {
	return func(o *managerOptions) {
		o.progressInterval = interval
	}
}

// WithRunLogs toggles per-run log files under <log_dir>/runs.
func WithRunLogs(enabled bool) ManagerOption {
	return func(o *managerOptions) {
		o.runLogs = enabled
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, j *journal.Journal, logger *slog.Logger, opts ...ManagerOption) *Manager {
	options := &managerOptions{progressInterval: defaultProgressInterval, runLogs: true}
	for _, opt := range opts {
		opt(options)
	}
	notifier := options.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	m := &Manager{
		cfg:      cfg,
		journal:  j,
		logger:   logger,
		notifier: notifier,
		flusher:  NewProgressFlusher(j, logger, options.progressInterval),
	}
	if options.runLogs {
		m.runLogs = NewRunLogger(cfg)
	}
	return m
}
