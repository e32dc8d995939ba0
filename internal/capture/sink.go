package capture

import (
	"context"
	"image"
	"time"
)

// Artifact describes a finished recording.
type Artifact struct {
	Path         string
	Frames       int
	AudioSamples int64
	SampleRate   int
	SizeBytes    int64
}

// Duration is the recorded audio length.
func (a Artifact) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(a.AudioSamples) / float64(a.SampleRate) * float64(time.Second))
}

// Sink receives composited frames and mixed audio. WriteAudio also makes a
// Sink a mixer destination. After Stop or Abort the sink is finished.
type Sink interface {
	Start(ctx context.Context) error
	// WriteFrame records frame as shown at elapsed seconds. frame may be
	// reused by the caller after WriteFrame returns.
	WriteFrame(frame *image.RGBA, elapsed float64) error
	WriteAudio(samples []float32) error
	Stop(ctx context.Context) (Artifact, error)
	// Abort discards everything recorded so far. No artifact remains.
	Abort() error
}

// frameGate keeps a constant frame rate from irregular ticks: a frame shown
// at elapsed t is repeated until floor(t*fps)+1 frames exist.
type frameGate struct {
	fps     int
	written int
}

// due is how many copies of the frame shown at elapsed to emit.
func (g *frameGate) due(elapsed float64) int {
	if elapsed < 0 {
		elapsed = 0
	}
	target := int(elapsed*float64(g.fps)+1e-9) + 1
	n := max(0, target-g.written)
	g.written += n
	return n
}

// padTo is how many trailing frames cover seconds of audio.
func (g *frameGate) padTo(seconds float64) int {
	target := int(seconds*float64(g.fps) + 1 - 1e-9)
	n := max(0, target-g.written)
	g.written += n
	return n
}
