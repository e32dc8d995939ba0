package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"time"

	"reelsmith/internal/assets"
	"reelsmith/internal/compositor"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
	"reelsmith/internal/timeline"
)

const progressBucket = 10

// Engine drives the render loop.
type Engine struct {
	logger *slog.Logger
}

// NewEngine returns an engine logging through logger.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logging.NewComponentLogger(logger, "render")}
}

func (rc *Context) validate() error {
	switch {
	case len(rc.Timeline.Assets) == 0:
		return errors.New("timeline has no scenes")
	case rc.Cache == nil || !rc.Cache.Frozen():
		return errors.New("assets must be preloaded before rendering")
	case rc.Graph == nil || rc.Compositor == nil || rc.Sink == nil || rc.Pacer == nil:
		return errors.New("render context is incomplete")
	case rc.FPS <= 0:
		return errors.New("fps must be positive")
	}
	return nil
}

// Run renders rc from the first tick to the timeline's total duration. The
// loop ends in exactly one place: the first tick at or past the end. Any
// error or panic aborts the sink so no artifact is left behind. The asset
// cache is closed when Run returns.
func (e *Engine) Run(ctx context.Context, rc *Context) (_ Result, err error) {
	if err := rc.validate(); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "render", "setup", "", err)
	}
	logger := e.logger
	if rc.Logger != nil {
		logger = logging.NewComponentLogger(rc.Logger, "render")
	}
	rc.LastIndex = -1
	rc.Frames, rc.Transitions, rc.RenderedSamples, rc.Elapsed = 0, 0, 0, 0

	sinkStarted := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
		if err != nil {
			e.abort(rc, sinkStarted, logger, err)
		}
		rc.Pacer.Stop()
		if cerr := rc.Cache.Close(); cerr != nil {
			logger.Warn("asset cache close failed", logging.Error(cerr))
		}
	}()

	if overlaps, verr := timeline.ValidateSubtitles(rc.Subtitles); verr != nil {
		return Result{}, services.Wrap(services.ErrValidation, "render", "subtitles", "", verr)
	} else if len(overlaps) > 0 {
		logging.WarnWithContext(logger, "subtitle segments overlap; first match wins", "subtitle_overlap",
			logging.Int("overlaps", len(overlaps)),
			logging.String("first_overlap", overlaps[0].String()),
			logging.String(logging.FieldErrorHint, "re-time the caption track to remove overlaps"),
		)
	}

	for _, v := range rc.Cache.Videos() {
		if v.HasAudio() {
			rc.Graph.ConnectBackground(v.Source(), v)
		}
		v.Play()
	}
	if err := rc.Graph.ScheduleNarration(rc.Narration, rc.Graph.SampleAt(rc.LeadIn)); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "render", "schedule narration", "", err)
	}
	if err := e.primeOpening(ctx, rc); err != nil {
		return Result{}, err
	}
	rc.Graph.AddDestination(rc.Sink)
	if err := rc.Sink.Start(ctx); err != nil {
		return Result{}, err
	}
	sinkStarted = true

	total := rc.Timeline.TotalDuration()
	logger.Info("render started",
		logging.String(logging.FieldEventType, "render_start"),
		logging.Int("scenes", len(rc.Timeline.Assets)),
		logging.Float64("total_seconds", total),
		logging.Float64("scene_seconds", rc.Timeline.SceneDuration()),
		logging.Int("unique_sources", rc.Cache.Len()),
	)
	sampler := logging.NewProgressSampler(progressBucket)
	started := time.Now()
	rc.Pacer.Start()
	for {
		elapsed, err := rc.Pacer.Next(ctx)
		if err != nil {
			return Result{}, err
		}
		if elapsed >= total {
			return e.finish(ctx, rc, total, logger, time.Since(started))
		}
		if err := e.tick(rc, elapsed); err != nil {
			return Result{}, err
		}
		percent := elapsed / total * 100
		if sampler.ShouldLog(percent, rc.LastIndex) {
			logger.Info("render progress",
				logging.Float64(logging.FieldProgressPercent, float64(int(percent))),
				logging.Int("scene", rc.LastIndex),
				logging.Int("frames", rc.Frames),
			)
			if rc.OnProgress != nil {
				rc.OnProgress(percent)
			}
		}
	}
}

func (e *Engine) tick(rc *Context, elapsed float64) error {
	rc.Elapsed = elapsed
	if err := e.renderAudio(rc, elapsed); err != nil {
		return err
	}
	index, progress := rc.Timeline.SceneAt(elapsed)
	if index != rc.LastIndex {
		// one effect per change, however many scenes were skipped
		rc.Graph.TriggerSFX()
		rc.Transitions++
		if err := e.enterScene(rc, index); err != nil {
			return err
		}
		rc.LastIndex = index
	}

	asset := rc.Timeline.Assets[index]
	var (
		img  image.Image
		zoom = 1.0
	)
	if asset.IsVideo() {
		v, ok := rc.Cache.Video(asset.Source)
		if !ok {
			return services.Wrap(services.ErrAssetUnavailable, "render", "frame", asset.Source, nil)
		}
		pos := timeline.SeekTime(asset, progress)
		v.Seek(pos)
		frame, err := v.FrameAt(assets.WindowFor(asset, rc.Timeline.SceneDuration(), rc.FPS), pos)
		if err != nil {
			return services.Wrap(services.ErrAssetUnavailable, "render", "frame", "", err)
		}
		img = frame
	} else {
		still, ok := rc.Cache.Image(asset.Source)
		if !ok {
			return services.Wrap(services.ErrAssetUnavailable, "render", "frame", asset.Source, nil)
		}
		img = still.Image()
		zoom = timeline.ImageZoom(progress)
	}

	caption, _ := timeline.CaptionAt(rc.Subtitles, elapsed)
	canvas := rc.Compositor.Draw(compositor.Scene{Image: img, Zoom: zoom, Caption: caption.Text})
	if err := rc.Sink.WriteFrame(canvas, elapsed); err != nil {
		return err
	}
	rc.Frames++
	return nil
}

// primeOpening opens the clip windows of the first two scenes and waits for
// their first frames, so the first tick has a picture for a clip at scene 0.
func (e *Engine) primeOpening(ctx context.Context, rc *Context) error {
	if err := e.enterScene(rc, 0); err != nil {
		return err
	}
	for cw := range rc.openWindows {
		if err := cw.video.AwaitFirstFrame(ctx, cw.window); err != nil {
			return services.Wrap(services.ErrAssetUnavailable, "render", "first frame", cw.video.Source(), err)
		}
	}
	return nil
}

// enterScene keeps the clip windows of index and index+1 open and closes
// every other window, including ones prefetched for scenes that were skipped.
func (e *Engine) enterScene(rc *Context, index int) error {
	if rc.openWindows == nil {
		rc.openWindows = make(map[clipWindow]struct{})
	}
	sceneSeconds := rc.Timeline.SceneDuration()
	var wanted []clipWindow
	for i := index; i <= index+1 && i < len(rc.Timeline.Assets); i++ {
		asset := rc.Timeline.Assets[i]
		if !asset.IsVideo() {
			continue
		}
		v, ok := rc.Cache.Video(asset.Source)
		if !ok {
			return services.Wrap(services.ErrAssetUnavailable, "render", "scene", asset.Source, nil)
		}
		wanted = append(wanted, clipWindow{video: v, window: assets.WindowFor(asset, sceneSeconds, rc.FPS)})
	}
	for cw := range rc.openWindows {
		if !slices.Contains(wanted, cw) {
			_ = cw.video.CloseWindow(cw.window)
			delete(rc.openWindows, cw)
		}
	}
	for _, cw := range wanted {
		if err := cw.video.Prefetch(cw.window); err != nil {
			return services.Wrap(services.ErrAssetUnavailable, "render", "prefetch", "", err)
		}
		rc.openWindows[cw] = struct{}{}
	}
	return nil
}

func (e *Engine) renderAudio(rc *Context, until float64) error {
	target := rc.Graph.SampleAt(until)
	if target <= rc.Graph.Position() {
		return nil
	}
	block, err := rc.Graph.RenderUntil(target)
	rc.RenderedSamples += int64(len(block))
	return err
}

func (e *Engine) finish(ctx context.Context, rc *Context, total float64, logger *slog.Logger, wall time.Duration) (Result, error) {
	if err := e.renderAudio(rc, total); err != nil {
		return Result{}, err
	}
	rc.Elapsed = total
	art, err := rc.Sink.Stop(ctx)
	if err != nil {
		return Result{}, err
	}
	e.release(rc)
	logger.Info("render completed",
		logging.String(logging.FieldEventType, "render_complete"),
		logging.Int("frames", rc.Frames),
		logging.Int("transitions", rc.Transitions),
		logging.Int64("samples", rc.RenderedSamples),
		logging.Duration("wall_time", wall),
	)
	return Result{Artifact: art, Frames: rc.Frames, Transitions: rc.Transitions, Duration: total}, nil
}

func (e *Engine) release(rc *Context) {
	for _, v := range rc.Cache.Videos() {
		v.Pause()
	}
	rc.Graph.Close()
	rc.openWindows = nil
}

func (e *Engine) abort(rc *Context, sinkStarted bool, logger *slog.Logger, cause error) {
	if sinkStarted {
		if err := rc.Sink.Abort(); err != nil {
			logger.Warn("sink abort failed", logging.Error(err))
		}
	}
	e.release(rc)
	logging.ErrorWithContext(logger, "render aborted", "render_abort",
		logging.Int("frames", rc.Frames),
		logging.Float64("elapsed", rc.Elapsed),
		logging.Error(cause),
	)
}
