package capture

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"reelsmith/internal/services"
	"reelsmith/internal/testsupport"
)

const teeStub = `exec 4<&0
for last; do :; done
cat <&4 > "$last" &
cat <&3 > "$last.audio"
wait`

func newRecorder(t *testing.T, body string) (*Recorder, string) {
	t.Helper()
	dir := t.TempDir()
	stub := testsupport.WriteStub(t, filepath.Join(dir, "bin"), "ffmpeg", body)
	out := filepath.Join(dir, "short.mp4")
	rec, err := NewRecorder(RecorderOptions{
		Binary: stub, Path: out, Width: 2, Height: 2, FPS: 10, SampleRate: 100,
		VideoQueue: 2, AudioQueue: 2,
	})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	return rec, out
}

func TestFrameGate(t *testing.T) {
	g := frameGate{fps: 30}
	ticks := []struct {
		elapsed float64
		want    int
	}{
		{0, 1},
		{0.01, 0},
		{0.034, 1},
		{0.2, 5},   // stalled tick repeats the frame
		{0.19, 0},  // late duplicate
		{-1, 0},
	}
	for _, tick := range ticks {
		if got := g.due(tick.elapsed); got != tick.want {
			t.Fatalf("due(%v) = %d, want %d", tick.elapsed, got, tick.want)
		}
	}
	if got := g.padTo(0.5); got != 8 {
		t.Fatalf("padTo(0.5) = %d, want 8 (15 total)", got)
	}
	if got := g.padTo(0.1); got != 0 {
		t.Fatalf("padTo below written = %d", got)
	}
}

func TestRecorderArgs(t *testing.T) {
	rec, err := NewRecorder(RecorderOptions{
		Path: "/tmp/out.mkv", Width: 720, Height: 1280, FPS: 30, SampleRate: 48000, Container: "mkv",
		VideoCodecArgs: []string{"-c:v", "libx264"}, AudioCodecArgs: []string{"-c:a", "aac"},
	})
	if err != nil {
		t.Fatal(err)
	}
	args := rec.Args()
	joined := strings.Join(args, " ")
	for _, want := range []string{"-s 720x1280", "-r 30", "-i pipe:0", "-f f32le -ar 48000 -ac 1 -i pipe:3", "-c:v libx264", "-c:a aac", "-f matroska"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "/tmp/out.mkv.part" {
		t.Fatalf("output should be the part file, got %q", args[len(args)-1])
	}
	if slices.Contains(args, "+faststart") {
		t.Fatal("faststart only applies to mp4/mov")
	}
	if _, err := NewRecorder(RecorderOptions{Path: "x", Width: 0, Height: 2, FPS: 1, SampleRate: 1}); err == nil {
		t.Fatal("expected geometry error")
	}
}

func TestRecorderWritesAndPublishes(t *testing.T) {
	rec, out := newRecorder(t, teeStub)
	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	frame := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if err := rec.WriteFrame(frame, 0); err != nil {
		t.Fatal(err)
	}
	if err := rec.WriteFrame(frame, 0.25); err != nil {
		t.Fatal(err)
	}
	if err := rec.WriteAudio(make([]float32, 50)); err != nil {
		t.Fatal(err)
	}
	art, err := rec.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if art.Frames != 5 || art.AudioSamples != 50 || art.Path != out {
		t.Fatalf("unexpected artifact %+v", art)
	}
	if art.SizeBytes != 5*2*2*4 {
		t.Fatalf("video bytes = %d, want 80", art.SizeBytes)
	}
	audio, err := os.ReadFile(out + ".part.audio")
	if err != nil || len(audio) != 200 {
		t.Fatalf("audio bytes = %d (%v), want 200", len(audio), err)
	}
	if _, err := os.Stat(out + ".part"); !os.IsNotExist(err) {
		t.Fatalf("part file should be renamed, stat err = %v", err)
	}
	if err := rec.WriteFrame(frame, 1); err == nil {
		t.Fatal("write after Stop should fail")
	}
}

func TestRecorderFailureLeavesNoOutput(t *testing.T) {
	rec, out := newRecorder(t, `cat >/dev/null; echo "Unknown encoder 'libx264'" >&2; exit 1`)
	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	frame := image.NewRGBA(image.Rect(0, 0, 2, 2))
	_ = rec.WriteFrame(frame, 0)
	_ = rec.WriteAudio(make([]float32, 10))
	_, err := rec.Stop(ctx)
	if !errors.Is(err, services.ErrCapture) || !strings.Contains(err.Error(), "Unknown encoder") {
		t.Fatalf("Stop err = %v, want capture failure with stderr", err)
	}
	for _, p := range []string{out, out + ".part"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s should not exist, stat err = %v", p, err)
		}
	}
}

func TestRecorderAbortRemovesPartial(t *testing.T) {
	rec, out := newRecorder(t, teeStub)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	frame := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range 5 {
		if err := rec.WriteFrame(frame, float64(i)/10); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if err := rec.Abort(); err != nil {
		t.Fatalf("second Abort: %v", err)
	}
	for _, p := range []string{out, out + ".part"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s should not exist, stat err = %v", p, err)
		}
	}
	if err := rec.WriteFrame(frame, 1); !errors.Is(err, services.ErrCapture) {
		t.Fatalf("write after Abort err = %v", err)
	}
}

func TestRecorderStartFailure(t *testing.T) {
	rec, err := NewRecorder(RecorderOptions{
		Binary: filepath.Join(t.TempDir(), "missing-ffmpeg"), Path: filepath.Join(t.TempDir(), "o.mp4"),
		Width: 2, Height: 2, FPS: 1, SampleRate: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Start(context.Background()); !errors.Is(err, services.ErrCapture) {
		t.Fatalf("Start err = %v, want ErrCapture", err)
	}
}

func TestMemorySink(t *testing.T) {
	m := &Memory{FPS: 10, SampleRate: 100, KeepFrames: true}
	frame := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := m.WriteFrame(frame, 0); err == nil {
		t.Fatal("write before Start should fail")
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	frame.Pix[0] = 7
	_ = m.WriteFrame(frame, 0)
	frame.Pix[0] = 9
	_ = m.WriteFrame(frame, 0.15)
	_ = m.WriteAudio(make([]float32, 40))
	art, err := m.Stop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if art.Frames != 4 || m.FrameCount() != 4 || art.AudioSamples != 40 {
		t.Fatalf("artifact %+v", art)
	}
	frames := m.Frames()
	if frames[0].Pix[0] != 7 || frames[1].Pix[0] != 9 || frames[3].Pix[0] != 9 {
		t.Fatal("frames should be copies taken at write time, padded with the last frame")
	}
	if art.Duration().Seconds() != 0.4 {
		t.Fatalf("duration = %v", art.Duration())
	}
	if got := m.WriteTimes(); len(got) != 2 || got[1] != 0.15 {
		t.Fatalf("write times = %v", got)
	}
}

func TestMemoryAbort(t *testing.T) {
	m := &Memory{FPS: 10}
	_ = m.Start(context.Background())
	_ = m.WriteAudio([]float32{1})
	if err := m.Abort(); err != nil {
		t.Fatal(err)
	}
	if !m.Aborted() || m.Stopped() || len(m.Audio()) != 0 {
		t.Fatal("abort should discard the recording")
	}
	if _, err := m.Stop(context.Background()); err == nil {
		t.Fatal("Stop after Abort should fail")
	}
}
