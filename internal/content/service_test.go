package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"reelsmith/internal/services"
	"reelsmith/internal/services/imagegen"
	"reelsmith/internal/services/speech"
)

type fakeText struct {
	json      string
	text      string
	err       error
	lastUser  string
	jsonCalls int
}

func (f *fakeText) CompleteJSON(_ context.Context, _, user string) (string, error) {
	f.jsonCalls++
	f.lastUser = user
	return f.json, f.err
}

func (f *fakeText) CompleteText(_ context.Context, _, user string) (string, error) {
	f.lastUser = user
	return f.text, f.err
}

type fakeImages struct {
	prompts []string
	img     imagegen.Image
	err     error
}

func (f *fakeImages) Generate(_ context.Context, prompt string) (imagegen.Image, error) {
	f.prompts = append(f.prompts, prompt)
	return f.img, f.err
}

type fakeSpeech struct {
	audio speech.Audio
	text  string
	err   error
	req   speech.SynthesisRequest
}

func (f *fakeSpeech) Synthesize(_ context.Context, req speech.SynthesisRequest) (speech.Audio, error) {
	f.req = req
	return f.audio, f.err
}

func (f *fakeSpeech) Transcribe(context.Context, []byte, string, string) (string, error) {
	return f.text, f.err
}

func TestSceneDescriptionsTrimsAndCaps(t *testing.T) {
	text := &fakeText{json: "```json\n{\"scenes\":[\" ink \",\"\",\"paper\",\"pen\"]}\n```"}
	svc := NewService(text, nil, nil, nil, nil)
	scenes, err := svc.SceneDescriptions(context.Background(), "ink", 2)
	if err != nil {
		t.Fatalf("SceneDescriptions: %v", err)
	}
	if len(scenes) != 2 || scenes[0] != "ink" || scenes[1] != "paper" {
		t.Fatalf("unexpected scenes %q", scenes)
	}
}

func TestSceneDescriptionsEmptyIsSynthesisFailure(t *testing.T) {
	svc := NewService(&fakeText{json: `{"scenes":[]}`}, nil, nil, nil, nil)
	_, err := svc.SceneDescriptions(context.Background(), "ink", 3)
	if !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
}

func TestGenerateImageCyclesStyles(t *testing.T) {
	images := &fakeImages{img: imagegen.Image{Data: []byte{1}, MimeType: "image/png"}}
	svc := NewService(nil, images, nil, []string{"alpha", " ", "beta"}, nil)
	for i := 0; i < 3; i++ {
		if _, err := svc.GenerateImage(context.Background(), "ink", i); err != nil {
			t.Fatalf("GenerateImage(%d): %v", i, err)
		}
	}
	wants := []string{"alpha", "beta", "alpha"}
	for i, want := range wants {
		if !strings.Contains(images.prompts[i], "Style: "+want) {
			t.Fatalf("prompt %d = %q, want style %q", i, images.prompts[i], want)
		}
	}
}

func TestGenerateImageFailures(t *testing.T) {
	tests := []struct {
		name   string
		images *fakeImages
	}{
		{"collaborator error", &fakeImages{err: imagegen.ErrNoImage}},
		{"empty payload", &fakeImages{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(nil, tt.images, nil, nil, nil)
			_, err := svc.GenerateImage(context.Background(), "ink", 0)
			if !errors.Is(err, services.ErrSynthesis) {
				t.Fatalf("expected ErrSynthesis, got %v", err)
			}
		})
	}
}

func TestScriptForDescriptionsListsScenes(t *testing.T) {
	text := &fakeText{text: " narration "}
	svc := NewService(text, nil, nil, nil, nil)
	got, err := svc.ScriptForDescriptions(context.Background(), "ink", []string{"a pen", "a page"})
	if err != nil {
		t.Fatalf("ScriptForDescriptions: %v", err)
	}
	if got != "narration" {
		t.Fatalf("script = %q", got)
	}
	if !strings.Contains(text.lastUser, "1. a pen\n2. a page") {
		t.Fatalf("prompt missing scenes: %q", text.lastUser)
	}
}

func TestScriptEmptyReplyFails(t *testing.T) {
	svc := NewService(&fakeText{text: "   "}, nil, nil, nil, nil)
	if _, err := svc.Script(context.Background(), "ink"); !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
	if _, err := svc.Script(context.Background(), " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMetadataNormalizesTags(t *testing.T) {
	svc := NewService(&fakeText{json: `{"title":" Ink ","description":"d","tags":["#ink"," ","paper"]}`}, nil, nil, nil, nil)
	meta, err := svc.Metadata(context.Background(), "script")
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta.Title != "Ink" || len(meta.Tags) != 2 || meta.Tags[0] != "ink" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestSynthesizePassesVoiceReference(t *testing.T) {
	voice := &fakeSpeech{audio: speech.Audio{Data: []byte{1, 2}, Format: "pcm"}}
	svc := NewService(nil, nil, voice, nil, nil)
	audio, err := svc.Synthesize(context.Background(), "hello", []byte("ref"), "warm")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(audio.Data) != 2 || string(voice.req.Reference) != "ref" || voice.req.Instructions != "warm" {
		t.Fatalf("unexpected request %+v", voice.req)
	}

	voice.audio = speech.Audio{}
	if _, err := svc.Synthesize(context.Background(), "hello", nil, ""); !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis for empty audio, got %v", err)
	}
}

func TestTranscribeEmptyFails(t *testing.T) {
	svc := NewService(nil, nil, &fakeSpeech{}, nil, nil)
	if _, err := svc.Transcribe(context.Background(), []byte{1}, "audio/wav", "a.wav"); !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
}
