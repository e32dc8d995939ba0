package sequencer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"reelsmith/internal/services"
)

type recordingSource struct {
	calls []string
	err   error
}

func (r *recordingSource) Generate(_ context.Context, description string, index int) (string, error) {
	r.calls = append(r.calls, fmt.Sprintf("%d:%s", index, description))
	if r.err != nil {
		return "", r.err
	}
	return fmt.Sprintf("gen-%d.png", index), nil
}

func TestPartitionEqualWindows(t *testing.T) {
	segments, err := Partition("clip.mp4", 10, true, 4)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if len(segments) != 4 {
		t.Fatalf("got %d segments", len(segments))
	}
	for i, seg := range segments {
		if !seg.IsVideo() || !seg.HasEmbeddedAudio || seg.TrimLength() != 2.5 {
			t.Fatalf("segment %d = %+v", i, seg)
		}
	}
	if segments[3].TrimStart != 7.5 || segments[3].TrimEnd != 10 {
		t.Fatalf("last segment = %+v", segments[3])
	}
	if _, err := Partition("clip.mp4", 0, false, 4); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func images(n int) []MediaAsset {
	out := make([]MediaAsset, n)
	for i := range out {
		out[i] = Image(fmt.Sprintf("user-%d.jpg", i))
	}
	return out
}

func TestSequenceLengthAndVideoCount(t *testing.T) {
	clip, _ := Partition("clip.mp4", 8, false, 4)
	for videos := 0; videos <= 4; videos++ {
		for users := 0; users <= 9; users++ {
			t.Run(fmt.Sprintf("v%d_u%d", videos, users), func(t *testing.T) {
				src := &recordingSource{}
				out, err := Sequence(context.Background(), Inputs{
					VideoSegments: clip[:videos],
					UserImages:    images(users),
					Descriptions:  []string{"a", "b", "c"},
				}, src)
				if err != nil {
					t.Fatalf("Sequence: %v", err)
				}
				if len(out) != DefaultTotalScenes {
					t.Fatalf("length = %d", len(out))
				}
				gotVideos := 0
				for i, asset := range out {
					if asset.IsVideo() {
						gotVideos++
						if i%2 != 0 {
							t.Fatalf("video at odd index %d", i)
						}
					}
				}
				if gotVideos != min(videos, 4) {
					t.Fatalf("videos = %d, want %d", gotVideos, min(videos, 4))
				}
			})
		}
	}
}

func TestSequenceInterleaveOrder(t *testing.T) {
	clip, _ := Partition("clip.mp4", 8, true, 4)
	src := &recordingSource{}
	out, err := Sequence(context.Background(), Inputs{
		VideoSegments: clip[:2],
		UserImages:    images(2),
		Descriptions:  []string{"ink", "paper"},
	}, src)
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}
	want := []string{"clip.mp4", "user-0.jpg", "clip.mp4", "user-1.jpg", "gen-4.png", "gen-5.png", "gen-6.png", "gen-7.png"}
	for i, asset := range out {
		if asset.Source != want[i] {
			t.Fatalf("scene %d source = %q, want %q", i, asset.Source, want[i])
		}
	}
	if out[2].TrimStart != 2 {
		t.Fatalf("second clip window should follow the first, got %+v", out[2])
	}
	wantCalls := []string{"4:ink", "5:paper", "6:ink", "7:paper"}
	if fmt.Sprint(src.calls) != fmt.Sprint(wantCalls) {
		t.Fatalf("generation calls = %v, want %v", src.calls, wantCalls)
	}
	if out[5].Description != "paper" {
		t.Fatalf("description not recorded: %+v", out[5])
	}
}

func TestSequenceRequiresDescriptions(t *testing.T) {
	_, err := Sequence(context.Background(), Inputs{UserImages: images(3)}, &recordingSource{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	out, err := Sequence(context.Background(), Inputs{UserImages: images(8)}, nil)
	if err != nil || len(out) != 8 {
		t.Fatalf("full user set should need no generator: %v", err)
	}
}

func TestSequenceGeneratorFailure(t *testing.T) {
	_, err := Sequence(context.Background(), Inputs{Descriptions: []string{"x"}}, &recordingSource{err: errors.New("quota")})
	if !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis, got %v", err)
	}
}

func TestGeneratedSlots(t *testing.T) {
	clip, _ := Partition("clip.mp4", 8, false, 4)
	got := GeneratedSlots(Inputs{VideoSegments: clip, UserImages: images(1)})
	if fmt.Sprint(got) != "[3 5 7]" {
		t.Fatalf("GeneratedSlots = %v", got)
	}
}
