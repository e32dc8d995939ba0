package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"reelsmith/internal/audio"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/sequencer"
)

// SeekTolerance is how far the audio playhead may drift from a requested
// seek before it is moved.
const SeekTolerance = 0.1

// DefaultFirstFrameTimeout bounds the wait for a window's first decoded frame.
const DefaultFirstFrameTimeout = 5 * time.Second

// ErrFirstFrameTimeout means a frame stream produced nothing in time.
var ErrFirstFrameTimeout = errors.New("no frame decoded in time")

// FrameStream yields decoded frames for one trim window.
type FrameStream interface {
	Frames() <-chan ffmpeg.Frame
	Err() error
	Close() error
}

// StreamOpener starts frame decoding for a window of source.
type StreamOpener interface {
	OpenFrames(ctx context.Context, source string, spec ffmpeg.StreamSpec) (FrameStream, error)
}

// AudioExtractor decodes a clip's first audio stream.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, source string) (audio.Buffer, error)
}

// Window is a trim window played over Frames output frames.
type Window struct {
	Start  float64
	End    float64
	Frames int
}

// WindowFor is the window of a video asset spread over sceneSeconds at fps.
func WindowFor(asset sequencer.MediaAsset, sceneSeconds float64, fps int) Window {
	frames := int(math.Ceil(sceneSeconds*float64(fps) - 1e-9))
	return Window{Start: asset.TrimStart, End: asset.TrimEnd, Frames: max(frames, 1)}
}

// Length is the window duration in source seconds.
func (w Window) Length() float64 { return max(0, w.End-w.Start) }

type windowStream struct {
	stream  FrameStream
	step    float64
	current *ffmpeg.Frame
	done    bool
}

// VideoElement is one loaded clip: its soundtrack with a looping playhead,
// and lazily opened frame streams per trim window.
type VideoElement struct {
	source   string
	ctx      context.Context
	opener   StreamOpener
	width    int
	height   int
	blocking bool
	logger   *slog.Logger

	// 0 means DefaultFirstFrameTimeout.
	firstFrameTimeout time.Duration

	mu       sync.Mutex
	samples  []float32
	rate     int
	playhead int
	playing  bool
	windows  map[Window]*windowStream
}

// Source is the cache key.
func (v *VideoElement) Source() string { return v.source }

// HasAudio reports whether the clip carries a soundtrack.
func (v *VideoElement) HasAudio() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.samples) > 0
}

// Play starts the audio playhead.
func (v *VideoElement) Play() {
	v.mu.Lock()
	v.playing = true
	v.mu.Unlock()
}

// Pause stops the audio playhead.
func (v *VideoElement) Pause() {
	v.mu.Lock()
	v.playing = false
	v.mu.Unlock()
}

// Playing reports whether the playhead advances.
func (v *VideoElement) Playing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

// Seek moves the audio playhead to seconds unless it is already within
// SeekTolerance of it.
func (v *VideoElement) Seek(seconds float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.samples) == 0 || v.rate <= 0 {
		return
	}
	target := int(math.Round(seconds*float64(v.rate))) % len(v.samples)
	if target < 0 {
		target += len(v.samples)
	}
	if math.Abs(float64(target-v.playhead)) > SeekTolerance*float64(v.rate) {
		v.playhead = target
	}
}

// Position is the audio playhead in seconds.
func (v *VideoElement) Position() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.rate <= 0 {
		return 0
	}
	return float64(v.playhead) / float64(v.rate)
}

// ReadAudio copies the soundtrack at 1x from the playhead, looping at the
// end. A paused or silent clip yields nothing.
func (v *VideoElement) ReadAudio(dst []float32) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.playing || len(v.samples) == 0 {
		return 0
	}
	written := 0
	for written < len(dst) {
		n := copy(dst[written:], v.samples[v.playhead:])
		written += n
		v.playhead += n
		if v.playhead >= len(v.samples) {
			v.playhead = 0
		}
	}
	return written
}

// Prefetch opens the frame stream for w ahead of use.
func (v *VideoElement) Prefetch(w Window) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := v.windowLocked(w)
	return err
}

// AwaitFirstFrame opens w if needed and waits until its first frame is
// decoded, the stream ends, or the first-frame timeout passes.
func (v *VideoElement) AwaitFirstFrame(ctx context.Context, w Window) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	ws, err := v.windowLocked(w)
	if err != nil {
		return err
	}
	if ws.current != nil || ws.done {
		return nil
	}
	return v.firstFrameLocked(ctx, ws)
}

// FrameAt returns the latest decoded frame of w at or before pos seconds
// into the source. Until the window has produced its first frame FrameAt
// waits for it; after that it only waits when the element was loaded for
// offline rendering and otherwise keeps showing the latest frame.
func (v *VideoElement) FrameAt(w Window, pos float64) (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ws, err := v.windowLocked(w)
	if err != nil {
		return nil, err
	}
	want := 0
	if ws.step > 0 {
		want = int(math.Floor((pos-w.Start)/ws.step + 1e-6))
	}
	want = min(max(want, 0), w.Frames-1)
	for !ws.done && (ws.current == nil || ws.current.Index < want) {
		switch {
		case v.blocking:
			frame, ok := <-ws.stream.Frames()
			if err := v.acceptLocked(ws, frame, ok); err != nil {
				return nil, err
			}
		case ws.current == nil:
			if err := v.firstFrameLocked(v.ctx, ws); err != nil {
				return nil, err
			}
		default:
			select {
			case frame, ok := <-ws.stream.Frames():
				if err := v.acceptLocked(ws, frame, ok); err != nil {
					return nil, err
				}
			default:
				return currentImage(ws), nil
			}
		}
	}
	return currentImage(ws), nil
}

func (v *VideoElement) firstFrameLocked(ctx context.Context, ws *windowStream) error {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := v.firstFrameTimeout
	if timeout <= 0 {
		timeout = DefaultFirstFrameTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame, ok := <-ws.stream.Frames():
		return v.acceptLocked(ws, frame, ok)
	case <-timer.C:
		return fmt.Errorf("%s: %w after %s", v.source, ErrFirstFrameTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *VideoElement) acceptLocked(ws *windowStream, frame ffmpeg.Frame, ok bool) error {
	if !ok {
		ws.done = true
		if err := ws.stream.Err(); err != nil {
			return fmt.Errorf("%s: %w", v.source, err)
		}
		return nil
	}
	ws.current = &frame
	return nil
}

func currentImage(ws *windowStream) image.Image {
	if ws.current == nil || ws.current.Image == nil {
		return nil
	}
	return ws.current.Image
}

func (v *VideoElement) windowLocked(w Window) (*windowStream, error) {
	if ws, ok := v.windows[w]; ok {
		return ws, nil
	}
	if v.opener == nil {
		return nil, fmt.Errorf("%s: no frame decoder configured", v.source)
	}
	if w.Length() <= 0 || w.Frames <= 0 {
		return nil, fmt.Errorf("%s: empty trim window %+v", v.source, w)
	}
	stream, err := v.opener.OpenFrames(v.ctx, v.source, ffmpeg.StreamSpec{
		Start:    w.Start,
		Duration: w.Length(),
		Frames:   w.Frames,
		Width:    v.width,
		Height:   v.height,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: open frames: %w", v.source, err)
	}
	ws := &windowStream{stream: stream, step: w.Length() / float64(w.Frames)}
	v.windows[w] = ws
	v.logger.Debug("frame stream opened",
		slog.String("source", v.source),
		slog.Float64("start", w.Start),
		slog.Float64("end", w.End),
		slog.Int("frames", w.Frames),
	)
	return ws, nil
}

// CloseWindow stops decoding w.
func (v *VideoElement) CloseWindow(w Window) error {
	v.mu.Lock()
	ws, ok := v.windows[w]
	delete(v.windows, w)
	v.mu.Unlock()
	if !ok {
		return nil
	}
	return ws.stream.Close()
}

// OpenWindows is the number of live frame streams.
func (v *VideoElement) OpenWindows() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.windows)
}

// Close pauses the element and stops every frame stream.
func (v *VideoElement) Close() error {
	v.mu.Lock()
	v.playing = false
	windows := v.windows
	v.windows = make(map[Window]*windowStream)
	v.mu.Unlock()
	var first error
	for _, ws := range windows {
		if err := ws.stream.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
