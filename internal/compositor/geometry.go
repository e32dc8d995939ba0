package compositor

import (
	"image"
	"math"
)

// coverEpsilon absorbs float error so exact fits land on whole pixels.
const coverEpsilon = 1e-6

// CoverRect places a src-sized image so it covers a width x height canvas,
// centered, then scales it by zoom about the canvas center. The result may
// extend past the canvas on either axis.
func CoverRect(src image.Rectangle, width, height int, zoom float64) image.Rectangle {
	sw, sh := float64(src.Dx()), float64(src.Dy())
	if sw <= 0 || sh <= 0 || width <= 0 || height <= 0 {
		return image.Rectangle{}
	}
	if zoom <= 0 {
		zoom = 1
	}
	scale := math.Max(float64(width)/sw, float64(height)/sh) * zoom
	w := sw * scale
	h := sh * scale
	x0 := (float64(width) - w) / 2
	y0 := (float64(height) - h) / 2
	return image.Rect(
		int(math.Floor(x0+coverEpsilon)), int(math.Floor(y0+coverEpsilon)),
		int(math.Ceil(x0+w-coverEpsilon)), int(math.Ceil(y0+h-coverEpsilon)),
	)
}

// CoverSize is the pixel size of CoverRect for the given zoom.
func CoverSize(src image.Rectangle, width, height int, zoom float64) image.Point {
	return CoverRect(src, width, height, zoom).Size()
}
