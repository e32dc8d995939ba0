package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"reelsmith/internal/capture"
	"reelsmith/internal/compositor"
	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/mixer"
	"reelsmith/internal/monitor"
	"reelsmith/internal/production"
	"reelsmith/internal/render"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/subtitles"
	"reelsmith/internal/textutil"
)

const renderingStage = "rendering"

// SinkFactory opens the capture sink that records to path.
type SinkFactory func(path string) (capture.Sink, error)

// MonitorFactory opens the live monitor output.
type MonitorFactory func(ctx context.Context, sampleRate int) (Monitor, error)

// Monitor is a mixer destination that can be closed.
type Monitor interface {
	mixer.Destination
	Close() error
}

// Renderer records the run and publishes it with sidecars.
type Renderer struct {
	cfg         *config.Config
	engine      *render.Engine
	newSink     SinkFactory
	openMonitor MonitorFactory
	logger      *slog.Logger
}

// Option adjusts a Renderer.
type Option func(*Renderer)

// WithSinkFactory replaces the ffmpeg recorder.
func WithSinkFactory(factory SinkFactory) Option {
	return func(r *Renderer) {
		if factory != nil {
			r.newSink = factory
		}
	}
}

// WithMonitorFactory replaces the speaker used for render.monitor.
func WithMonitorFactory(factory MonitorFactory) Option {
	return func(r *Renderer) {
		if factory != nil {
			r.openMonitor = factory
		}
	}
}

// NewRenderer constructs the rendering stage handler.
func NewRenderer(cfg *config.Config, logger *slog.Logger, opts ...Option) *Renderer {
	r := &Renderer{cfg: cfg, logger: logger}
	r.newSink = r.recorder
	r.openMonitor = func(ctx context.Context, sampleRate int) (Monitor, error) {
		return monitor.Open(ctx, sampleRate, monitor.DefaultLatency, r.logger)
	}
	for _, opt := range opts {
		opt(r)
	}
	r.engine = render.NewEngine(logger)
	return r
}

// SetLogger swaps in the per-run stage logger.
func (r *Renderer) SetLogger(logger *slog.Logger) {
	r.logger = logger
	r.engine = render.NewEngine(logger)
}

func (r *Renderer) recorder(path string) (capture.Sink, error) {
	return capture.NewRecorder(capture.RecorderOptions{
		Binary:         r.cfg.FFmpegBinary(),
		Path:           path,
		Width:          r.cfg.Render.Width,
		Height:         r.cfg.Render.Height,
		FPS:            r.cfg.Render.FPS,
		SampleRate:     r.cfg.Render.SampleRate,
		Container:      r.cfg.Render.Container,
		VideoCodecArgs: r.cfg.Render.VideoCodecArgs,
		AudioCodecArgs: r.cfg.Render.AudioCodecArgs,
		Logger:         r.logger,
	})
}

func (r *Renderer) Prepare(ctx context.Context, run *production.Run) error {
	run.SetProgress("Rendering", "Preparing render", 0)
	if run.Cache == nil || !run.Cache.Frozen() {
		return services.Wrap(services.ErrValidation, renderingStage, "prepare", "assets not preloaded", nil)
	}
	if err := os.MkdirAll(run.StagingDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, renderingStage, "prepare", "create staging dir", err)
	}
	return nil
}

func (r *Renderer) Execute(ctx context.Context, run *production.Run) error {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(r.logger, "renderer"))

	face, err := compositor.DefaultFace(r.cfg.Render.CaptionFontSize)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, renderingStage, "load caption font", "", err)
	}
	comp, err := compositor.New(compositor.Options{
		Width:     r.cfg.Render.Width,
		Height:    r.cfg.Render.Height,
		GrainDots: r.cfg.Render.GrainDots,
		Face:      face,
	})
	if err != nil {
		return services.Wrap(services.ErrConfiguration, renderingStage, "compositor", "", err)
	}
	graph := mixer.NewGraph(r.cfg.Render.SampleRate, nil)
	defer graph.Close()

	base := textutil.Slug(run.Title(), run.ID)
	staged := filepath.Join(run.StagingDir, base+"."+r.cfg.Render.Container)
	sink, err := r.newSink(staged)
	if err != nil {
		return services.Wrap(services.ErrCapture, renderingStage, "open sink", filepath.Base(staged), err)
	}

	if r.cfg.Render.Monitor && !r.cfg.Offline() {
		speaker, err := r.openMonitor(ctx, r.cfg.Render.SampleRate)
		if err != nil {
			logging.WarnWithContext(logger, "monitor output unavailable; rendering without it", "monitor_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "no live audio during the render"),
				logging.String(logging.FieldErrorHint, "check the default audio device or set render.monitor = false"),
			)
		} else {
			graph.AddDestination(speaker)
			defer func() { _ = speaker.Close() }()
		}
	}

	rc := &render.Context{
		Timeline:   run.Timeline,
		Subtitles:  run.Subtitles,
		Narration:  run.Narration,
		Cache:      run.Cache,
		Graph:      graph,
		Compositor: comp,
		Sink:       sink,
		Pacer:      r.pacer(),
		LeadIn:     r.cfg.LeadIn().Seconds(),
		FPS:        r.cfg.Render.FPS,
		Logger:     r.logger,
		OnProgress: func(percent float64) {
			run.SetProgress("Rendering", fmt.Sprintf("Rendering %.0f%%", percent), percent*0.9)
		},
	}
	result, err := r.engine.Run(ctx, rc)
	if err != nil {
		return err
	}

	run.SetProgress("Rendering", "Publishing", 90)
	if err := r.publish(run, base, result.Artifact); err != nil {
		return err
	}

	logger.Info("video published",
		logging.String("output_file", run.OutputPath),
		logging.String("subtitle_file", run.SubtitlePath),
		logging.String("metadata_file", run.MetadataPath),
		logging.Int("frames", result.Frames),
		logging.Int("transitions", result.Transitions),
		logging.Float64("duration_seconds", result.Duration),
	)
	run.SetProgressComplete("Rendering", "Video published")
	return nil
}

func (r *Renderer) pacer() render.Pacer {
	if r.cfg.Offline() {
		return &render.VirtualPacer{FPS: r.cfg.Render.FPS}
	}
	return &render.RealtimePacer{FPS: r.cfg.Render.FPS}
}

// sidecar is the metadata JSON published next to the video.
type sidecar struct {
	RunID           string   `json:"run_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Topic           string   `json:"topic,omitempty"`
	Script          string   `json:"script"`
	DurationSeconds float64  `json:"duration_seconds"`
	Scenes          int      `json:"scenes"`
	Video           string   `json:"video"`
	Captions        string   `json:"captions,omitempty"`
}

func (r *Renderer) publish(run *production.Run, base string, art capture.Artifact) error {
	outDir := r.cfg.Paths.OutputDir
	published, err := fileutil.PublishFile(art.Path, outDir)
	if err != nil {
		return services.Wrap(services.ErrCapture, renderingStage, "publish video", filepath.Base(art.Path), err)
	}
	art.Path = published
	if info, statErr := os.Stat(published); statErr == nil {
		art.SizeBytes = info.Size()
	}
	run.Artifact = art
	run.OutputPath = published

	if len(run.Subtitles) > 0 {
		srt := filepath.Join(run.StagingDir, base+".srt")
		if err := subtitles.WriteSRT(srt, run.Subtitles); err != nil {
			return services.Wrap(services.ErrConfiguration, renderingStage, "write captions", filepath.Base(srt), err)
		}
		if run.SubtitlePath, err = fileutil.PublishFile(srt, outDir); err != nil {
			return services.Wrap(services.ErrConfiguration, renderingStage, "publish captions", filepath.Base(srt), err)
		}
	}

	meta := sidecar{
		RunID:           run.ID,
		Title:           run.Title(),
		Description:     run.Metadata.Description,
		Tags:            run.Metadata.Tags,
		Topic:           run.Inputs.Topic,
		Script:          run.Script,
		DurationSeconds: art.Duration().Seconds(),
		Scenes:          len(run.Timeline.Assets),
		Video:           filepath.Base(published),
	}
	if run.SubtitlePath != "" {
		meta.Captions = filepath.Base(run.SubtitlePath)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, renderingStage, "encode metadata", "", err)
	}
	jsonPath := filepath.Join(run.StagingDir, base+".json")
	if err := fileutil.WriteFileAtomic(jsonPath, append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrConfiguration, renderingStage, "write metadata", filepath.Base(jsonPath), err)
	}
	if run.MetadataPath, err = fileutil.PublishFile(jsonPath, outDir); err != nil {
		return services.Wrap(services.ErrConfiguration, renderingStage, "publish metadata", filepath.Base(jsonPath), err)
	}
	return nil
}

func (r *Renderer) HealthCheck(ctx context.Context) stage.Health {
	const name = "renderer"
	if _, err := exec.LookPath(r.cfg.FFmpegBinary()); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return stage.Unhealthyf(name, "%s not found on PATH", r.cfg.FFmpegBinary())
		}
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
