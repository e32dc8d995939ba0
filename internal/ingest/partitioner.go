package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/sequencer"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
)

const partitioningStage = "partitioning_video"

// Partitioner cuts an uploaded clip into render.video_segments equal
// windows. Without an upload it records zero segments.
type Partitioner struct {
	cfg    *config.Config
	probe  Prober
	logger *slog.Logger
}

// NewPartitioner constructs the partitioning stage handler.
func NewPartitioner(cfg *config.Config, probe Prober, logger *slog.Logger) *Partitioner {
	if probe == nil {
		probe = defaultProbe
	}
	return &Partitioner{cfg: cfg, probe: probe, logger: logger}
}

// SetLogger swaps in the per-run stage logger.
func (p *Partitioner) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

func (p *Partitioner) Prepare(ctx context.Context, run *production.Run) error {
	run.SetProgress("Partitioning video", "Preparing clip inspection", 0)
	run.Segments = nil
	return nil
}

func (p *Partitioner) Execute(ctx context.Context, run *production.Run) error {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.logger, "partitioner"))
	if !run.HasVideo() {
		logger.Info("no uploaded clip; zero video segments", logging.String(logging.FieldEventType, "stage_noop"))
		run.SetProgressComplete("Partitioning video", "No video uploaded")
		return nil
	}

	path := run.Inputs.VideoPath
	result, err := p.probe(ctx, p.cfg.FFprobeBinary(), path)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, partitioningStage, "probe clip", filepath.Base(path), err)
	}
	summary := result.Summary()
	if !summary.HasVideo {
		return services.Wrap(services.ErrValidation, partitioningStage, "validate clip", filepath.Base(path)+" has no video stream", nil)
	}

	segments, err := sequencer.Partition(path, summary.DurationSeconds, summary.HasAudio, p.cfg.Render.VideoSegments)
	if err != nil {
		return err
	}
	run.Segments = segments
	logger.Info("clip partitioned",
		logging.String("source_file", path),
		logging.Float64("duration_seconds", summary.DurationSeconds),
		logging.Bool("has_audio", summary.HasAudio),
		logging.Int("segments", len(segments)),
	)
	run.SetProgressComplete("Partitioning video", fmt.Sprintf("%d segments of %.1fs", len(segments), segments[0].TrimLength()))
	return nil
}

func (p *Partitioner) HealthCheck(ctx context.Context) stage.Health {
	const name = "partitioner"
	if p.cfg.Render.VideoSegments <= 0 {
		return stage.Unhealthy(name, "render.video_segments must be positive")
	}
	return stage.Healthy(name)
}
