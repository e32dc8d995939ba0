package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelsmith/internal/assets"
	"reelsmith/internal/audio"
	"reelsmith/internal/capture"
	"reelsmith/internal/compositor"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/mixer"
	"reelsmith/internal/sequencer"
	"reelsmith/internal/services"
	"reelsmith/internal/testsupport"
	"reelsmith/internal/timeline"
)

const (
	testRate = 8000
	testFPS  = 10
)

type fixture struct {
	rc    *Context
	sink  *capture.Memory
	cache *assets.Cache
	graph *mixer.Graph
}

func constant(seconds, value float64) audio.Buffer {
	samples := make([]float32, int(seconds*testRate))
	for i := range samples {
		samples[i] = float32(value)
	}
	return audio.Buffer{SampleRate: testRate, Samples: samples}
}

func newFixture(t *testing.T, list []sequencer.MediaAsset, narration audio.Buffer, opts assets.Options) fixture {
	t.Helper()
	opts.Width, opts.Height, opts.SampleRate = 72, 128, testRate
	cache := assets.NewCache(opts)
	t.Cleanup(func() { _ = cache.Close() })
	if err := cache.Preload(context.Background(), list, time.Second); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	face, err := compositor.DefaultFace(8)
	if err != nil {
		t.Fatal(err)
	}
	comp, err := compositor.New(compositor.Options{Width: 72, Height: 128, GrainDots: 5, Face: face, Rand: rand.New(rand.NewPCG(3, 4))})
	if err != nil {
		t.Fatal(err)
	}
	graph := mixer.NewGraph(testRate, rand.New(rand.NewPCG(5, 6)))
	sink := &capture.Memory{FPS: testFPS, SampleRate: testRate}
	rc := &Context{
		Timeline:   timeline.Timeline{Assets: list, NarrationDuration: narration.Seconds(), TailPadding: 1.25},
		Subtitles:  []timeline.Subtitle{{Text: "ink bleeds", StartMillis: 0, EndMillis: 900}},
		Narration:  narration,
		Cache:      cache,
		Graph:      graph,
		Compositor: comp,
		Sink:       sink,
		Pacer:      &VirtualPacer{FPS: testFPS},
		LeadIn:     0.5,
		FPS:        testFPS,
	}
	return fixture{rc: rc, sink: sink, cache: cache, graph: graph}
}

func stills(t *testing.T, n int) []sequencer.MediaAsset {
	t.Helper()
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	testsupport.WritePNG(t, a, 40, 60, color.RGBA{R: 200, A: 255})
	testsupport.WritePNG(t, b, 60, 40, color.RGBA{B: 200, A: 255})
	out := make([]sequencer.MediaAsset, n)
	for i := range out {
		src := a
		if i%2 == 1 {
			src = b
		}
		out[i] = sequencer.Image(src)
	}
	return out
}

func TestRunCompletesWithOneEffectPerScene(t *testing.T) {
	f := newFixture(t, stills(t, 8), constant(1.0, 0.2), assets.Options{})
	res, err := NewEngine(nil).Run(context.Background(), f.rc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Frames != 23 || f.sink.FrameCount() != 23 {
		t.Fatalf("frames = %d (sink %d), want 23", res.Frames, f.sink.FrameCount())
	}
	if res.Transitions != 8 || f.graph.Triggered() != 8 {
		t.Fatalf("transitions = %d, effects = %d, want 8", res.Transitions, f.graph.Triggered())
	}
	if got := len(f.sink.Audio()); got != 18000 {
		t.Fatalf("audio samples = %d, want 2.25 s at 8 kHz", got)
	}
	if !f.sink.Stopped() || f.sink.Aborted() {
		t.Fatal("sink should be stopped, not aborted")
	}
	if f.cache.Len() != 0 || f.graph.ActiveVoices() != 0 {
		t.Fatal("resources should be released after the run")
	}
	if res.Duration != 2.25 || res.Artifact.Frames != 23 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunFiresSingleEffectWhenScenesAreSkipped(t *testing.T) {
	f := newFixture(t, stills(t, 8), constant(1.0, 0.2), assets.Options{})
	f.rc.Pacer = &VirtualPacer{FPS: testFPS, Schedule: []float64{0, 0.1, 1.0, 2.0}}
	res, err := NewEngine(nil).Run(context.Background(), f.rc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// scenes 0 -> 3 -> 7
	if res.Transitions != 3 || f.graph.Triggered() != 3 {
		t.Fatalf("transitions = %d, effects = %d, want 3", res.Transitions, f.graph.Triggered())
	}
	if f.rc.LastIndex != 7 {
		t.Fatalf("LastIndex = %d", f.rc.LastIndex)
	}
}

func TestRunNarrationStartsAfterLeadInAtUnityGain(t *testing.T) {
	f := newFixture(t, stills(t, 1), constant(1.0, 0.5), assets.Options{})
	if _, err := NewEngine(nil).Run(context.Background(), f.rc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	samples := f.sink.Audio()
	if got := samples[int(0.45*testRate)]; got != 0 {
		t.Fatalf("sample before lead-in = %v, want silence", got)
	}
	// the only effect ends at 0.4 s
	if got := samples[int(0.6*testRate)]; got != 0.5 {
		t.Fatalf("narration sample = %v, want 0.5", got)
	}
	if got := samples[int(1.6*testRate)]; got != 0 {
		t.Fatalf("tail should be silent, got %v", got)
	}
}

type failingSink struct {
	*capture.Memory
	failAt int
	panics bool
	calls  int
}

func (s *failingSink) WriteFrame(frame *image.RGBA, elapsed float64) error {
	s.calls++
	if s.calls == s.failAt {
		if s.panics {
			panic("canvas exploded")
		}
		return services.Wrap(services.ErrCapture, "capture", "write", "pipe closed", nil)
	}
	return s.Memory.WriteFrame(frame, elapsed)
}

func TestRunAbortsOnSinkFailure(t *testing.T) {
	for _, panics := range []bool{false, true} {
		f := newFixture(t, stills(t, 8), constant(1.0, 0.2), assets.Options{})
		sink := &failingSink{Memory: f.sink, failAt: 3, panics: panics}
		f.rc.Sink = sink
		_, err := NewEngine(nil).Run(context.Background(), f.rc)
		if err == nil {
			t.Fatalf("panics=%v: expected error", panics)
		}
		if panics && !strings.Contains(err.Error(), "render panic") {
			t.Fatalf("panic not converted: %v", err)
		}
		if !panics && !errors.Is(err, services.ErrCapture) {
			t.Fatalf("err = %v, want ErrCapture", err)
		}
		if !f.sink.Aborted() || f.sink.Stopped() {
			t.Fatalf("panics=%v: sink should be aborted", panics)
		}
		if f.cache.Len() != 0 || f.graph.ActiveVoices() != 0 {
			t.Fatalf("panics=%v: resources not released", panics)
		}
	}
}

func TestRunRequiresPreload(t *testing.T) {
	list := stills(t, 2)
	f := newFixture(t, list, constant(1.0, 0.2), assets.Options{})
	f.rc.Cache = assets.NewCache(assets.Options{Width: 72, Height: 128})
	_, err := NewEngine(nil).Run(context.Background(), f.rc)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, stills(t, 2), constant(1.0, 0.2), assets.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEngine(nil).Run(ctx, f.rc); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !f.sink.Aborted() {
		t.Fatal("sink should be aborted on cancel")
	}
}

type eagerStream struct{ ch chan ffmpeg.Frame }

func (s eagerStream) Frames() <-chan ffmpeg.Frame { return s.ch }
func (s eagerStream) Err() error                  { return nil }
func (s eagerStream) Close() error                { return nil }

type recordingOpener struct {
	mu     sync.Mutex
	starts []float64
}

func (o *recordingOpener) OpenFrames(_ context.Context, _ string, spec ffmpeg.StreamSpec) (assets.FrameStream, error) {
	o.mu.Lock()
	o.starts = append(o.starts, spec.Start)
	o.mu.Unlock()
	ch := make(chan ffmpeg.Frame, spec.Frames)
	for i := range spec.Frames {
		ch <- ffmpeg.Frame{Index: i, Image: image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))}
	}
	close(ch)
	return eagerStream{ch: ch}, nil
}

type constantExtractor struct{}

func (constantExtractor) ExtractAudio(context.Context, string) (audio.Buffer, error) {
	return constant(2, 1), nil
}

func TestRunPlaysClipWindows(t *testing.T) {
	clip := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(clip, []byte("clip"), 0o644); err != nil {
		t.Fatal(err)
	}
	segments, err := sequencer.Partition(clip, 8, true, 4)
	if err != nil {
		t.Fatal(err)
	}
	list := append(stills(t, 2), segments[0], segments[1])
	opener := &recordingOpener{}
	f := newFixture(t, list, constant(1.0, 0.2), assets.Options{Opener: opener, Audio: constantExtractor{}, Blocking: true})
	res, err := NewEngine(nil).Run(context.Background(), f.rc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Transitions != 4 {
		t.Fatalf("transitions = %d", res.Transitions)
	}
	// segment 0 is prefetched while scene 1 plays, segment 1 while scene 2 plays
	if len(opener.starts) != 2 || opener.starts[0] != 0 || opener.starts[1] != 2 {
		t.Fatalf("opened windows at %v, want [0 2]", opener.starts)
	}
}

// slowStream delivers solid red frames, the first one only after delay.
type slowStream struct {
	ch   chan ffmpeg.Frame
	stop chan struct{}
	once sync.Once
}

func (s *slowStream) Frames() <-chan ffmpeg.Frame { return s.ch }
func (s *slowStream) Err() error                  { return nil }
func (s *slowStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

type slowOpener struct {
	delay time.Duration
	// silent streams never produce a frame
	silent bool
}

func (o slowOpener) OpenFrames(_ context.Context, _ string, spec ffmpeg.StreamSpec) (assets.FrameStream, error) {
	s := &slowStream{ch: make(chan ffmpeg.Frame, spec.Frames), stop: make(chan struct{})}
	go func() {
		defer close(s.ch)
		select {
		case <-time.After(o.delay):
		case <-s.stop:
			return
		}
		if o.silent {
			<-s.stop
			return
		}
		for i := range spec.Frames {
			img := image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
			for p := 0; p < len(img.Pix); p += 4 {
				img.Pix[p], img.Pix[p+3] = 255, 255
			}
			select {
			case s.ch <- ffmpeg.Frame{Index: i, Image: img}:
			case <-s.stop:
				return
			}
		}
	}()
	return s, nil
}

func clipSegments(t *testing.T) []sequencer.MediaAsset {
	t.Helper()
	clip := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(clip, []byte("clip"), 0o644); err != nil {
		t.Fatal(err)
	}
	segments, err := sequencer.Partition(clip, 8, false, 4)
	if err != nil {
		t.Fatal(err)
	}
	return segments
}

func meanRed(img *image.RGBA, cx, cy int) int {
	total, n := 0, 0
	for y := cy - 2; y <= cy+2; y++ {
		for x := cx - 2; x <= cx+2; x++ {
			total += int(img.RGBAAt(x, y).R)
			n++
		}
	}
	return total / n
}

func TestRunRealtimeClipOpensWithDecodedFrame(t *testing.T) {
	list := []sequencer.MediaAsset{clipSegments(t)[0], stills(t, 1)[0]}
	f := newFixture(t, list, constant(1.0, 0.2), assets.Options{Opener: slowOpener{delay: 30 * time.Millisecond}})
	f.sink.KeepFrames = true
	f.rc.Subtitles = nil

	if _, err := NewEngine(nil).Run(context.Background(), f.rc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	frames := f.sink.Frames()
	if len(frames) < 5 {
		t.Fatalf("only %d frames captured", len(frames))
	}
	for i, frame := range frames[:5] {
		if red := meanRed(frame, 36, 64); red < 100 {
			t.Fatalf("frame %d of the clip scene is not showing the clip (mean red %d)", i, red)
		}
	}
}

func TestRunFailsWhenFirstClipFrameNeverArrives(t *testing.T) {
	list := []sequencer.MediaAsset{clipSegments(t)[0], stills(t, 1)[0]}
	f := newFixture(t, list, constant(1.0, 0.2), assets.Options{
		Opener:            slowOpener{silent: true},
		FirstFrameTimeout: 20 * time.Millisecond,
	})

	_, err := NewEngine(nil).Run(context.Background(), f.rc)
	if !errors.Is(err, services.ErrAssetUnavailable) || !errors.Is(err, assets.ErrFirstFrameTimeout) {
		t.Fatalf("err = %v, want asset unavailable after first-frame timeout", err)
	}
	if f.sink.FrameCount() != 0 || f.sink.Stopped() {
		t.Fatalf("recording should not have started: frames %d stopped %v", f.sink.FrameCount(), f.sink.Stopped())
	}
}

func TestEnterSceneClosesWindowsOfSkippedScenes(t *testing.T) {
	list := clipSegments(t)
	f := newFixture(t, list, constant(1.0, 0.2), assets.Options{Opener: &recordingOpener{}, Blocking: true})
	v, ok := f.cache.Video(list[0].Source)
	if !ok {
		t.Fatal("clip not preloaded")
	}
	e := NewEngine(nil)

	steps := []struct {
		index int
		open  int
	}{
		{0, 2},
		{2, 2}, // scene 1 was skipped; its prefetched window must go
		{3, 1},
	}
	for _, step := range steps {
		if err := e.enterScene(f.rc, step.index); err != nil {
			t.Fatalf("enterScene(%d): %v", step.index, err)
		}
		if got := v.OpenWindows(); got != step.open {
			t.Fatalf("after entering scene %d: %d open windows, want %d", step.index, got, step.open)
		}
		if len(f.rc.openWindows) != step.open {
			t.Fatalf("after entering scene %d: context tracks %d windows", step.index, len(f.rc.openWindows))
		}
	}
}
