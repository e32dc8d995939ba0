package render

import (
	"log/slog"

	"reelsmith/internal/assets"
	"reelsmith/internal/audio"
	"reelsmith/internal/capture"
	"reelsmith/internal/compositor"
	"reelsmith/internal/mixer"
	"reelsmith/internal/timeline"
)

// Context carries everything one render needs and the counters it updates.
// The engine owns it for the duration of Run.
type Context struct {
	Timeline   timeline.Timeline
	Subtitles  []timeline.Subtitle
	Narration  audio.Buffer
	Cache      *assets.Cache
	Graph      *mixer.Graph
	Compositor *compositor.Compositor
	Sink       capture.Sink
	Pacer      Pacer
	// LeadIn delays narration, in seconds.
	LeadIn float64
	FPS    int
	Logger *slog.Logger
	// OnProgress, when set, receives the sampled render percentage.
	OnProgress func(percent float64)

	// LastIndex is the scene shown on the previous tick, -1 before the first.
	LastIndex       int
	RenderedSamples int64
	Frames          int
	Transitions     int
	Elapsed         float64

	// openWindows are the clip frame streams kept for the current and next
	// scene.
	openWindows map[clipWindow]struct{}
}

type clipWindow struct {
	video  *assets.VideoElement
	window assets.Window
}

// Result summarises a finished render.
type Result struct {
	Artifact    capture.Artifact
	Frames      int
	Transitions int
	Duration    float64
}
