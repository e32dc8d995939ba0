package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"reelsmith/internal/assets"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/production"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/timeline"
)

const readyStage = "ready"

// Preloader builds the run's timeline and fills an asset cache for it.
// The cache is handed to the run; the render engine closes it.
type Preloader struct {
	cfg       *config.Config
	opener    assets.StreamOpener
	extractor assets.AudioExtractor
	logger    *slog.Logger
}

// NewPreloader constructs the ready stage handler. opener decodes clip
// frames and extractor their embedded audio; both may be nil when no clip
// was uploaded.
func NewPreloader(cfg *config.Config, opener assets.StreamOpener, extractor assets.AudioExtractor, logger *slog.Logger) *Preloader {
	return &Preloader{cfg: cfg, opener: opener, extractor: extractor, logger: logger}
}

// SetLogger swaps in the per-run stage logger.
func (p *Preloader) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

func (p *Preloader) Prepare(ctx context.Context, run *production.Run) error {
	run.SetProgress("Ready", "Building timeline", 0)
	if len(run.Assets) == 0 {
		return services.Wrap(services.ErrValidation, readyStage, "prepare", "no scenes sequenced", nil)
	}
	if len(run.Narration.Samples) == 0 {
		return services.Wrap(services.ErrValidation, readyStage, "prepare", "no narration decoded", nil)
	}
	return nil
}

func (p *Preloader) Execute(ctx context.Context, run *production.Run) error {
	logger := logging.WithContext(ctx, logging.NewComponentLogger(p.logger, "preload"))

	tl := timeline.Timeline{
		Assets:            run.Assets,
		NarrationDuration: run.Narration.Seconds(),
		TailPadding:       p.cfg.TailPadding().Seconds(),
	}
	run.Timeline = tl

	if run.Cache != nil {
		_ = run.Cache.Close()
		run.Cache = nil
	}
	cache := assets.NewCache(assets.Options{
		Width:      p.cfg.Render.Width,
		Height:     p.cfg.Render.Height,
		SampleRate: p.cfg.Render.SampleRate,
		Opener:     p.opener,
		Audio:      p.extractor,
		Blocking:   p.cfg.Offline(),
		Logger:     p.logger,
		// realtime renders wait this long for a clip's first frame
		FirstFrameTimeout: p.cfg.AssetTimeout(),
	})
	run.SetProgress("Ready", "Loading scene assets", 20)
	if err := cache.Preload(ctx, run.Assets, p.cfg.AssetTimeout()); err != nil {
		_ = cache.Close()
		return err
	}
	run.Cache = cache

	logger.Info("timeline ready",
		logging.Int("scenes", len(tl.Assets)),
		logging.Int("unique_sources", cache.Len()),
		logging.Float64("total_seconds", tl.TotalDuration()),
		logging.Float64("scene_seconds", tl.SceneDuration()),
	)
	run.SetProgressComplete("Ready", fmt.Sprintf("%d scenes, %.1fs", len(tl.Assets), tl.TotalDuration()))
	return nil
}

func (p *Preloader) HealthCheck(ctx context.Context) stage.Health {
	const name = "preloader"
	if p.cfg.AssetTimeout() <= 0 {
		return stage.Unhealthy(name, "render.asset_timeout_seconds must be positive")
	}
	return stage.Healthy(name)
}
