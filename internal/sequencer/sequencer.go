package sequencer

import (
	"context"
	"fmt"
	"strings"

	"reelsmith/internal/services"
)

// DefaultTotalScenes is the number of scenes in a production.
const DefaultTotalScenes = 8

// DefaultVideoSegments is how many windows an uploaded clip is cut into.
const DefaultVideoSegments = 4

// Kind distinguishes stills from clips.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// MediaAsset is one visual. Trim points are seconds into the source and
// only apply to video.
type MediaAsset struct {
	Kind             Kind    `json:"kind"`
	Source           string  `json:"source"`
	HasEmbeddedAudio bool    `json:"has_embedded_audio,omitempty"`
	TrimStart        float64 `json:"trim_start,omitempty"`
	TrimEnd          float64 `json:"trim_end,omitempty"`
	// Description is set for generated images.
	Description string `json:"description,omitempty"`
}

// IsVideo reports whether the asset is a clip.
func (a MediaAsset) IsVideo() bool { return a.Kind == KindVideo }

// TrimLength is the length of the trim window in seconds.
func (a MediaAsset) TrimLength() float64 {
	if !a.IsVideo() {
		return 0
	}
	return max(0, a.TrimEnd-a.TrimStart)
}

// Image builds an image asset.
func Image(source string) MediaAsset {
	return MediaAsset{Kind: KindImage, Source: source}
}

// Partition cuts a clip of the given duration into parts equal trim windows.
func Partition(source string, duration float64, hasAudio bool, parts int) ([]MediaAsset, error) {
	if strings.TrimSpace(source) == "" {
		return nil, services.Wrap(services.ErrValidation, "sequencer", "partition", "empty source", nil)
	}
	if parts <= 0 {
		parts = DefaultVideoSegments
	}
	if !(duration > 0) {
		return nil, services.Wrap(services.ErrValidation, "sequencer", "partition", fmt.Sprintf("clip duration %v is not positive", duration), nil)
	}
	step := duration / float64(parts)
	segments := make([]MediaAsset, parts)
	for i := range segments {
		end := step * float64(i+1)
		if i == parts-1 {
			end = duration
		}
		segments[i] = MediaAsset{
			Kind:             KindVideo,
			Source:           source,
			HasEmbeddedAudio: hasAudio,
			TrimStart:        step * float64(i),
			TrimEnd:          end,
		}
	}
	return segments, nil
}

// ImageSource produces a still for a scene that has no uploaded media. It
// returns the source of the produced image (a file path).
type ImageSource interface {
	Generate(ctx context.Context, description string, index int) (string, error)
}

// Inputs are the media available for sequencing.
type Inputs struct {
	VideoSegments []MediaAsset
	UserImages    []MediaAsset
	Descriptions  []string
	TotalScenes   int
}

func (in Inputs) total() int {
	if in.TotalScenes <= 0 {
		return DefaultTotalScenes
	}
	return in.TotalScenes
}

type slotKind int

const (
	slotVideo slotKind = iota
	slotImage
	slotGenerate
)

func (in Inputs) plan() []slotKind {
	total := in.total()
	slots := make([]slotKind, total)
	videos, images := len(in.VideoSegments), len(in.UserImages)
	for i := range slots {
		switch {
		case i%2 == 0 && videos > 0:
			slots[i] = slotVideo
			videos--
		case images > 0:
			slots[i] = slotImage
			images--
		default:
			slots[i] = slotGenerate
		}
	}
	return slots
}

// GeneratedSlots returns the scene indexes that will need a generated image.
func GeneratedSlots(in Inputs) []int {
	var out []int
	for i, slot := range in.plan() {
		if slot == slotGenerate {
			out = append(out, i)
		}
	}
	return out
}

// Sequence interleaves the inputs into exactly TotalScenes assets: even
// indexes take the next video segment while any remain, then user images in
// order, then images generated from Descriptions[i % len]. Generation runs
// sequentially in scene order.
func Sequence(ctx context.Context, in Inputs, gen ImageSource) ([]MediaAsset, error) {
	slots := in.plan()
	descriptions := make([]string, 0, len(in.Descriptions))
	for _, d := range in.Descriptions {
		if trimmed := strings.TrimSpace(d); trimmed != "" {
			descriptions = append(descriptions, trimmed)
		}
	}
	for _, slot := range slots {
		if slot != slotGenerate {
			continue
		}
		if len(descriptions) == 0 {
			return nil, services.Wrap(services.ErrValidation, "sequencer", "sequence", "scene descriptions required to fill remaining scenes", nil)
		}
		if gen == nil {
			return nil, services.Wrap(services.ErrConfiguration, "sequencer", "sequence", "no image source configured", nil)
		}
		break
	}

	out := make([]MediaAsset, 0, len(slots))
	nextVideo, nextImage := 0, 0
	for i, slot := range slots {
		switch slot {
		case slotVideo:
			out = append(out, in.VideoSegments[nextVideo])
			nextVideo++
		case slotImage:
			out = append(out, in.UserImages[nextImage])
			nextImage++
		case slotGenerate:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			description := descriptions[i%len(descriptions)]
			source, err := gen.Generate(ctx, description, i)
			if err != nil {
				return nil, services.Wrap(services.ErrSynthesis, "sequencer", "generate image", fmt.Sprintf("scene %d", i), err)
			}
			if strings.TrimSpace(source) == "" {
				return nil, services.Wrap(services.ErrSynthesis, "sequencer", "generate image", fmt.Sprintf("scene %d: empty source", i), nil)
			}
			asset := Image(source)
			asset.Description = description
			out = append(out, asset)
		}
	}
	return out, nil
}
