package stage

import (
	"context"
	"log/slog"

	"reelsmith/internal/production"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *production.Run) error
	Execute(context.Context, *production.Run) error
	HealthCheck(context.Context) Health
}

// LoggerAware handlers receive the per-run stage logger before Prepare.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
