package ffmpeg

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestF32LERoundTrip(t *testing.T) {
	in := []float32{0, 1, -0.5, 0.25}
	out, err := DecodeF32LE(EncodeF32LE(nil, in))
	if err != nil {
		t.Fatalf("DecodeF32LE: %v", err)
	}
	if !slices.Equal(in, out) {
		t.Fatalf("got %v, want %v", out, in)
	}
	if _, err := DecodeF32LE([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for partial sample")
	}
}

func TestDecodeAudioReadsStdout(t *testing.T) {
	// two samples: 1.0 and -2.0 as little-endian float32
	stub := writeStub(t, `cat >/dev/null; printf '\000\000\200\077\000\000\000\300'`)
	runner := NewRunner(stub, 48000)
	buf, err := runner.DecodeAudio(context.Background(), []byte("RIFF...."))
	if err != nil {
		t.Fatalf("DecodeAudio: %v", err)
	}
	if buf.SampleRate != 48000 || len(buf.Samples) != 2 || buf.Samples[0] != 1 || buf.Samples[1] != -2 {
		t.Fatalf("unexpected buffer %+v", buf)
	}
}

func TestDecodeAudioFailureIncludesStderr(t *testing.T) {
	stub := writeStub(t, `cat >/dev/null; echo "Invalid data found" >&2; exit 1`)
	runner := NewRunner(stub, 48000)
	_, err := runner.DecodeAudio(context.Background(), []byte{1, 2})
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestFrameArgsCoverCrop(t *testing.T) {
	args := NewRunner("ffmpeg", 48000).FrameArgs("clip.mp4", StreamSpec{Start: 2.5, Duration: 2, Frames: 60, Width: 720, Height: 1280})
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-ss 2.500 -t 2.000 -i clip.mp4",
		"fps=30.000000,scale=720:1280:force_original_aspect_ratio=increase,crop=720:1280",
		"-frames:v 60",
		"-f rawvideo -pix_fmt rgba pipe:1",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args missing %q: %s", want, joined)
		}
	}
}

func TestFrameStreamDeliversFrames(t *testing.T) {
	// 2x2 RGBA frames are 16 bytes; emit three frames.
	stub := writeStub(t, `head -c 48 /dev/zero`)
	runner := NewRunner(stub, 48000)
	stream, err := runner.OpenFrameStream(context.Background(), "clip.mp4", StreamSpec{Duration: 3, Frames: 3, Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("OpenFrameStream: %v", err)
	}
	defer stream.Close()

	var frames []Frame
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case f, ok := <-stream.Frames():
			if !ok {
				done = true
				break
			}
			frames = append(frames, f)
		case <-timeout:
			t.Fatal("timed out waiting for frames")
		}
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames", len(frames))
	}
	if math.Abs(frames[2].Time-2) > 1e-9 || frames[2].Index != 2 || frames[2].Image.Bounds().Dx() != 2 {
		t.Fatalf("unexpected last frame %+v", frames[2])
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
}

func TestOpenFrameStreamValidatesSpec(t *testing.T) {
	if _, err := NewRunner("ffmpeg", 0).OpenFrameStream(context.Background(), "x", StreamSpec{}); err == nil {
		t.Fatal("expected invalid spec error")
	}
}
