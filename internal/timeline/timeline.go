package timeline

import (
	"math"

	"reelsmith/internal/sequencer"
)

// DefaultTailPadding is silence kept after narration ends.
const DefaultTailPadding = 1.2

// Timeline maps elapsed render time onto scenes. All durations are seconds.
type Timeline struct {
	Assets            []sequencer.MediaAsset
	NarrationDuration float64
	TailPadding       float64
}

// New builds a timeline with the default tail padding.
func New(assets []sequencer.MediaAsset, narrationSeconds float64) Timeline {
	return Timeline{Assets: assets, NarrationDuration: narrationSeconds, TailPadding: DefaultTailPadding}
}

// TotalDuration is narration plus tail padding.
func (t Timeline) TotalDuration() float64 {
	return t.NarrationDuration + t.TailPadding
}

// SceneDuration is the uniform length of each scene.
func (t Timeline) SceneDuration() float64 {
	if len(t.Assets) == 0 {
		return 0
	}
	return t.TotalDuration() / float64(len(t.Assets))
}

// SceneAt returns the scene index for elapsed, clamped to the asset range,
// and the fraction of that scene already shown, in [0, 1).
func (t Timeline) SceneAt(elapsed float64) (int, float64) {
	scene := t.SceneDuration()
	n := len(t.Assets)
	if n == 0 || scene <= 0 {
		return 0, 0
	}
	elapsed = max(0, elapsed)
	index := int(math.Floor(elapsed / scene))
	progress := math.Mod(elapsed, scene) / scene
	if index > n-1 {
		index = n - 1
	}
	if progress < 0 || progress >= 1 {
		progress = 0
	}
	return index, progress
}

// SeekTime is the source position of a clip scene at progress.
func SeekTime(asset sequencer.MediaAsset, progress float64) float64 {
	return asset.TrimStart + progress*(asset.TrimEnd-asset.TrimStart)
}

// ImageZoom is the scale applied to a still at progress.
func ImageZoom(progress float64) float64 {
	return 1.05 + 0.12*progress
}

// MaxImageZoom is the zoom at the end of a scene.
const MaxImageZoom = 1.17
