package assets

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"reelsmith/internal/compositor"
	"reelsmith/internal/timeline"
)

// ImageElement is a decoded still, pre-scaled to its largest zoomed cover
// size so per-frame drawing only ever shrinks it.
type ImageElement struct {
	source string
	img    *image.RGBA
}

// Source is the cache key.
func (e *ImageElement) Source() string { return e.source }

// Image returns the pre-scaled still.
func (e *ImageElement) Image() image.Image { return e.img }

// Close is a no-op; stills hold no external resources.
func (e *ImageElement) Close() error { return nil }

func loadImage(ctx context.Context, source string, width, height int) (*ImageElement, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	decoded, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return prescale(source, decoded, width, height), nil
}

func prescale(source string, src image.Image, width, height int) *ImageElement {
	size := compositor.CoverSize(src.Bounds(), width, height, timeline.MaxImageZoom)
	// never upscale past the source's own resolution
	if size.X > src.Bounds().Dx() || size.Y > src.Bounds().Dy() {
		size = src.Bounds().Size()
	}
	dst := image.NewRGBA(image.Rectangle{Max: size})
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Bounds(), draw.Src, nil)
	return &ImageElement{source: source, img: dst}
}
