package production

import (
	"strings"
	"sync"
	"time"

	"reelsmith/internal/assets"
	"reelsmith/internal/audio"
	"reelsmith/internal/capture"
	"reelsmith/internal/content"
	"reelsmith/internal/sequencer"
	"reelsmith/internal/timeline"
)

// Status represents the lifecycle of a production run.
type Status string

const (
	StatusIdle              Status = "idle"
	StatusTranscribing      Status = "transcribing"
	StatusPartitioningVideo Status = "partitioning_video"
	StatusGeneratingImages  Status = "generating_images"
	StatusGeneratingScript  Status = "generating_script"
	StatusProfilingVoice    Status = "profiling_voice"
	StatusGeneratingAudio   Status = "generating_audio"
	StatusReady             Status = "ready"
	StatusRendering         Status = "rendering"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
)

var pipelineOrder = []Status{
	StatusIdle,
	StatusTranscribing,
	StatusPartitioningVideo,
	StatusGeneratingImages,
	StatusGeneratingScript,
	StatusProfilingVoice,
	StatusGeneratingAudio,
	StatusReady,
	StatusRendering,
	StatusCompleted,
}

var statusSet = func() map[Status]int {
	set := make(map[Status]int, len(pipelineOrder)+1)
	for i, status := range pipelineOrder {
		set[status] = i
	}
	set[StatusFailed] = -1
	return set
}()

// AllStatuses returns the pipeline order followed by StatusFailed.
func AllStatuses() []Status {
	out := make([]Status, 0, len(pipelineOrder)+1)
	out = append(out, pipelineOrder...)
	return append(out, StatusFailed)
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Next returns the status that follows s in the pipeline.
func (s Status) Next() (Status, bool) {
	idx, ok := statusSet[s]
	if !ok || idx < 0 || idx+1 >= len(pipelineOrder) {
		return "", false
	}
	return pipelineOrder[idx+1], true
}

// CanTransition reports whether a run may move from one status to another.
// Runs advance strictly one step at a time; any non-terminal status may fail.
func CanTransition(from, to Status) bool {
	if to == StatusFailed {
		_, known := statusSet[from]
		return known && !from.IsTerminal()
	}
	next, ok := from.Next()
	return ok && next == to
}

// Inputs are the user-supplied materials for a production.
type Inputs struct {
	Topic         string
	VideoPath     string
	ImagePaths    []string
	VoiceRefPath  string
	VoiceLink     string
	NarrationPath string
	CaptionsPath  string
}

// Run is one production. Stage handlers fill the intermediate fields in
// pipeline order; the workflow manager owns Status and Message.
type Run struct {
	ID     string
	Inputs Inputs
	Status Status

	StagingDir string

	Transcript       string
	Segments         []sequencer.MediaAsset
	Descriptions     []string
	Assets           []sequencer.MediaAsset
	Script           string
	Metadata         content.Metadata
	VoiceProfile     string
	NarrationPayload []byte
	Narration        audio.Buffer
	Subtitles        []timeline.Subtitle
	Timeline         timeline.Timeline

	// Cache holds preloaded assets between Ready and Rendering. The render
	// engine closes it; Release closes it on every other path.
	Cache *assets.Cache

	Artifact     capture.Artifact
	OutputPath   string
	SubtitlePath string
	MetadataPath string

	progressMu      sync.Mutex
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string

	// Message is the single terminal status line.
	Message string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns an idle run.
func New(id string, inputs Inputs) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:        id,
		Inputs:    inputs,
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Progress is a consistent snapshot of the progress fields.
type Progress struct {
	Stage   string
	Percent float64
	Message string
}

// SetProgress updates all three progress fields together. It is safe to
// call while another goroutine reads Progress.
func (r *Run) SetProgress(stage, message string, percent float64) {
	r.progressMu.Lock()
	r.ProgressStage = stage
	r.ProgressMessage = message
	r.ProgressPercent = percent
	r.progressMu.Unlock()
}

// Progress returns the current progress fields.
func (r *Run) Progress() Progress {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	return Progress{Stage: r.ProgressStage, Percent: r.ProgressPercent, Message: r.ProgressMessage}
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (r *Run) SetProgressComplete(stage, message string) {
	r.SetProgress(stage, message, 100)
}

// HasVideo reports whether an uploaded video was supplied.
func (r *Run) HasVideo() bool {
	return strings.TrimSpace(r.Inputs.VideoPath) != ""
}

// HasNarration reports whether narration audio was uploaded instead of
// synthesized.
func (r *Run) HasNarration() bool {
	return strings.TrimSpace(r.Inputs.NarrationPath) != ""
}

// Title is the best available human title for the run.
func (r *Run) Title() string {
	if title := strings.TrimSpace(r.Metadata.Title); title != "" {
		return title
	}
	return strings.TrimSpace(r.Inputs.Topic)
}

// Release frees runtime resources still held by the run.
func (r *Run) Release() {
	if r.Cache != nil {
		_ = r.Cache.Close()
	}
}
