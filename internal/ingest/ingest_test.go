package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelsmith/internal/ingest"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/production"
	"reelsmith/internal/services"
	"reelsmith/internal/testsupport"
)

type fakeSpeech struct {
	text     string
	err      error
	calls    int
	mimeType string
	filename string
	payload  []byte
}

func (f *fakeSpeech) Transcribe(_ context.Context, payload []byte, mimeType, filename string) (string, error) {
	f.calls++
	f.payload = payload
	f.mimeType = mimeType
	f.filename = filename
	return f.text, f.err
}

type fakeExtractor struct {
	calls int
	err   error
}

func (f *fakeExtractor) ExtractTranscriptionAudio(_ context.Context, _, dest string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, []byte("RIFFwav"), 0o644)
}

func probeReturning(result ffprobe.Result, err error) ingest.Prober {
	return func(context.Context, string, string) (ffprobe.Result, error) {
		return result, err
	}
}

func clipProbe(duration string, audio bool) ffprobe.Result {
	streams := []ffprobe.Stream{{CodecType: "video", Width: 1080, Height: 1920}}
	if audio {
		streams = append(streams, ffprobe.Stream{CodecType: "audio"})
	}
	return ffprobe.Result{Streams: streams, Format: ffprobe.Format{Duration: duration}}
}

func newRun(t *testing.T, inputs production.Inputs) *production.Run {
	t.Helper()
	run := production.New("run-test", inputs)
	run.StagingDir = filepath.Join(t.TempDir(), "staging")
	return run
}

func TestTranscriberNoInputsIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	speech := &fakeSpeech{text: "unused"}
	handler := ingest.NewTranscriber(cfg, speech, &fakeExtractor{}, nil, logging.NewNop())
	run := newRun(t, production.Inputs{Topic: "volcano lightning"})

	if err := handler.Prepare(context.Background(), run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if speech.calls != 0 || run.Transcript != "" {
		t.Fatalf("expected no transcription, got calls=%d transcript=%q", speech.calls, run.Transcript)
	}
	if run.ProgressPercent != 100 {
		t.Fatalf("expected completed progress, got %v", run.ProgressPercent)
	}
}

func TestTranscriberUploadedNarrationBecomesPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	narration := filepath.Join(dir, "take-2.mp3")
	if err := os.WriteFile(narration, []byte("ID3-narration"), 0o644); err != nil {
		t.Fatal(err)
	}
	speech := &fakeSpeech{text: "  Lightning forms inside ash clouds.  "}
	handler := ingest.NewTranscriber(cfg, speech, &fakeExtractor{}, nil, logging.NewNop())
	run := newRun(t, production.Inputs{NarrationPath: narration})

	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.Transcript != "Lightning forms inside ash clouds." {
		t.Fatalf("transcript = %q", run.Transcript)
	}
	if string(run.NarrationPayload) != "ID3-narration" {
		t.Fatalf("narration payload not kept: %q", run.NarrationPayload)
	}
	if speech.mimeType != "audio/mpeg" || speech.filename != "take-2.mp3" {
		t.Fatalf("unexpected upload metadata: %q %q", speech.mimeType, speech.filename)
	}
}

func TestTranscriberClipAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	speech := &fakeSpeech{text: "crowd noise and a guide talking"}
	extractor := &fakeExtractor{}

	t.Run("with audio", func(t *testing.T) {
		handler := ingest.NewTranscriber(cfg, speech, extractor, probeReturning(clipProbe("12", true), nil), logging.NewNop())
		run := newRun(t, production.Inputs{VideoPath: "/uploads/tour.mp4"})
		if err := handler.Execute(context.Background(), run); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if extractor.calls != 1 || run.Transcript != "crowd noise and a guide talking" {
			t.Fatalf("unexpected result: calls=%d transcript=%q", extractor.calls, run.Transcript)
		}
		if speech.mimeType != "audio/wav" || string(speech.payload) != "RIFFwav" {
			t.Fatalf("unexpected payload: %q %q", speech.mimeType, speech.payload)
		}
		if len(run.NarrationPayload) != 0 {
			t.Fatal("clip audio must not become narration")
		}
	})

	t.Run("silent clip", func(t *testing.T) {
		calls := extractor.calls
		handler := ingest.NewTranscriber(cfg, speech, extractor, probeReturning(clipProbe("12", false), nil), logging.NewNop())
		run := newRun(t, production.Inputs{VideoPath: "/uploads/tour.mp4"})
		if err := handler.Execute(context.Background(), run); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if extractor.calls != calls || run.Transcript != "" {
			t.Fatal("silent clip should not be transcribed")
		}
	})

	t.Run("extract failure", func(t *testing.T) {
		failing := &fakeExtractor{err: errors.New("no such stream")}
		handler := ingest.NewTranscriber(cfg, speech, failing, probeReturning(clipProbe("12", true), nil), logging.NewNop())
		err := handler.Execute(context.Background(), newRun(t, production.Inputs{VideoPath: "/uploads/tour.mp4"}))
		if !errors.Is(err, services.ErrExternalTool) {
			t.Fatalf("expected external tool error, got %v", err)
		}
	})
}

func TestTranscriberPropagatesSynthesisFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	narration := filepath.Join(dir, "take.wav")
	if err := os.WriteFile(narration, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	failure := services.Wrap(services.ErrSynthesis, "content", "transcribe", "no usable payload", nil)
	handler := ingest.NewTranscriber(cfg, &fakeSpeech{err: failure}, nil, nil, logging.NewNop())
	err := handler.Execute(context.Background(), newRun(t, production.Inputs{NarrationPath: narration}))
	if !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected synthesis failure, got %v", err)
	}
}

func TestPartitionerNoVideoRecordsZeroSegments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handler := ingest.NewPartitioner(cfg, probeReturning(ffprobe.Result{}, errors.New("must not probe")), logging.NewNop())
	run := newRun(t, production.Inputs{})
	if err := handler.Prepare(context.Background(), run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(run.Segments) != 0 {
		t.Fatalf("expected zero segments, got %d", len(run.Segments))
	}
}

func TestPartitionerSplitsClip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	handler := ingest.NewPartitioner(cfg, probeReturning(clipProbe("22.0", true), nil), logging.NewNop())
	run := newRun(t, production.Inputs{VideoPath: "/uploads/reef.mov"})
	if err := handler.Execute(context.Background(), run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(run.Segments) != cfg.Render.VideoSegments {
		t.Fatalf("expected %d segments, got %d", cfg.Render.VideoSegments, len(run.Segments))
	}
	last := run.Segments[len(run.Segments)-1]
	if last.TrimEnd != 22 || !last.HasEmbeddedAudio || last.Source != "/uploads/reef.mov" {
		t.Fatalf("unexpected last segment: %+v", last)
	}
	if run.Segments[1].TrimStart != 5.5 {
		t.Fatalf("unexpected window start: %v", run.Segments[1].TrimStart)
	}
}

func TestPartitionerRejectsAudioOnlyUpload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	result := ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "audio"}},
		Format:  ffprobe.Format{Duration: "30"},
	}
	handler := ingest.NewPartitioner(cfg, probeReturning(result, nil), logging.NewNop())
	err := handler.Execute(context.Background(), newRun(t, production.Inputs{VideoPath: "/uploads/podcast.m4a"}))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if h := ingest.NewTranscriber(cfg, nil, nil, nil, nil).HealthCheck(context.Background()); h.Ready {
		t.Fatal("transcriber without speech should be unhealthy")
	}
	if h := ingest.NewTranscriber(cfg, &fakeSpeech{}, nil, nil, nil).HealthCheck(context.Background()); !h.Ready {
		t.Fatalf("transcriber should be healthy: %+v", h)
	}
	cfg.Render.VideoSegments = 0
	if h := ingest.NewPartitioner(cfg, nil, nil).HealthCheck(context.Background()); h.Ready {
		t.Fatal("partitioner with zero segments should be unhealthy")
	}
}
