package compositor

import (
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// DefaultGrainDots is how many grain pixels are scattered per frame.
	DefaultGrainDots = 1200
	grainAlpha       = 0.12

	vignetteInner = 0.35 // fraction of the half-diagonal left untouched
	vignetteMax   = 0.85

	captionWidthRatio  = 0.8
	captionCenterRatio = 0.8
	lineSpacing        = 1.15
	shadowOffset       = 3
	shadowBlur         = 4
	shadowAlpha        = 0.75
)

var (
	captionFill    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	captionShadow  = color.RGBA{A: 255}
	captionOutline = color.RGBA{R: 235, G: 235, B: 235, A: 255}
)

// Options configure a Compositor.
type Options struct {
	Width     int
	Height    int
	GrainDots int
	// Face draws captions. Defaults to DefaultFace(DefaultFontSize).
	Face font.Face
	// Rand drives grain placement. Defaults to an unseeded source.
	Rand *rand.Rand
}

// Scene is what one frame shows.
type Scene struct {
	// Image is the current still or video frame; nil draws black.
	Image image.Image
	// Zoom scales the cover fit about the center; 0 means 1.
	Zoom    float64
	Caption string
}

// Compositor draws scenes onto one reusable RGBA canvas. It is not safe for
// concurrent use.
type Compositor struct {
	width, height int
	grainDots     int
	canvas        *image.RGBA
	black         []uint8
	vignette      *image.Alpha
	face          font.Face
	upper         cases.Caser
	rng           *rand.Rand
}

// New builds a compositor and precomputes the vignette mask.
func New(opts Options) (*Compositor, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errors.New("compositor: canvas size must be positive")
	}
	face := opts.Face
	if face == nil {
		var err error
		face, err = DefaultFace(DefaultFontSize)
		if err != nil {
			return nil, err
		}
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	grain := opts.GrainDots
	if grain < 0 {
		grain = 0
	}
	c := &Compositor{
		width:     opts.Width,
		height:    opts.Height,
		grainDots: grain,
		canvas:    image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
		vignette:  vignetteMask(opts.Width, opts.Height),
		face:      face,
		upper:     cases.Upper(language.Und),
		rng:       rng,
	}
	c.black = make([]uint8, len(c.canvas.Pix))
	for i := 3; i < len(c.black); i += 4 {
		c.black[i] = 0xff
	}
	return c, nil
}

// Canvas returns the shared canvas. Its contents change on every Draw.
func (c *Compositor) Canvas() *image.RGBA { return c.canvas }

// Bounds is the canvas rectangle.
func (c *Compositor) Bounds() image.Rectangle { return c.canvas.Rect }

// Draw renders scene and returns the canvas.
func (c *Compositor) Draw(scene Scene) *image.RGBA {
	copy(c.canvas.Pix, c.black)
	if scene.Image != nil {
		c.drawCover(scene.Image, scene.Zoom)
	}
	c.drawGrain()
	draw.DrawMask(c.canvas, c.canvas.Rect, image.NewUniform(color.Black), image.Point{}, c.vignette, image.Point{}, draw.Over)
	if scene.Caption != "" {
		c.drawCaption(c.upper.String(scene.Caption))
	}
	return c.canvas
}

func (c *Compositor) drawCover(src image.Image, zoom float64) {
	dr := CoverRect(src.Bounds(), c.width, c.height, zoom)
	if dr.Empty() {
		return
	}
	if dr == c.canvas.Rect && src.Bounds().Size() == dr.Size() {
		draw.Draw(c.canvas, dr, src, src.Bounds().Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(c.canvas, dr, src, src.Bounds(), draw.Src, nil)
}

func (c *Compositor) drawGrain() {
	pix := c.canvas.Pix
	for range c.grainDots {
		x := c.rng.IntN(c.width)
		y := c.rng.IntN(c.height)
		i := c.canvas.PixOffset(x, y)
		for k := range 3 {
			v := float64(pix[i+k])
			pix[i+k] = uint8(v + (255-v)*grainAlpha)
		}
	}
}

// vignetteMask is transparent inside the inner radius and ramps linearly to
// vignetteMax at the corners.
func vignetteMask(width, height int) *image.Alpha {
	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	cx, cy := float64(width)/2, float64(height)/2
	corner := math.Hypot(cx, cy)
	inner := corner * vignetteInner
	for y := range height {
		for x := range width {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			t := (d - inner) / (corner - inner)
			if t <= 0 {
				continue
			}
			mask.Pix[mask.PixOffset(x, y)] = uint8(math.Min(t, 1) * vignetteMax * 255)
		}
	}
	return mask
}

func (c *Compositor) drawCaption(text string) {
	maxWidth := int(float64(c.width) * captionWidthRatio)
	lines := WrapText(c.face, text, maxWidth)
	if len(lines) == 0 {
		return
	}
	metrics := c.face.Metrics()
	ascent := metrics.Ascent.Ceil()
	lineHeight := int(math.Ceil(float64(metrics.Height.Ceil()) * lineSpacing))
	blockHeight := lineHeight * len(lines)
	top := int(float64(c.height)*captionCenterRatio) - blockHeight/2
	for i, line := range lines {
		advance := font.MeasureString(c.face, line).Ceil()
		x := (c.width - advance) / 2
		baseline := top + i*lineHeight + ascent
		c.drawLine(line, x, baseline, advance, metrics)
	}
}

// drawLine renders one caption line: blurred shadow, white fill, then a
// one pixel light outline.
func (c *Compositor) drawLine(line string, x, baseline, advance int, metrics font.Metrics) {
	pad := shadowBlur*2 + shadowOffset + 2
	bounds := image.Rect(
		x-pad, baseline-metrics.Ascent.Ceil()-pad,
		x+advance+pad, baseline+metrics.Descent.Ceil()+pad,
	)
	glyphs := image.NewAlpha(bounds)
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.Opaque,
		Face: c.face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(line)

	shadow := image.NewAlpha(bounds)
	copy(shadow.Pix, glyphs.Pix)
	boxBlur(shadow, shadowBlur)
	scaleAlpha(shadow, shadowAlpha)
	offset := bounds.Add(image.Pt(shadowOffset, shadowOffset))
	draw.DrawMask(c.canvas, offset, image.NewUniform(captionShadow), image.Point{}, shadow, bounds.Min, draw.Over)
	draw.DrawMask(c.canvas, bounds, image.NewUniform(captionFill), image.Point{}, glyphs, bounds.Min, draw.Over)
	draw.DrawMask(c.canvas, bounds, image.NewUniform(captionOutline), image.Point{}, outline(glyphs), bounds.Min, draw.Over)
}

// outline is the one pixel ring around the glyph coverage.
func outline(glyphs *image.Alpha) *image.Alpha {
	b := glyphs.Rect
	ring := image.NewAlpha(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var peak uint8
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					p := image.Pt(x+dx, y+dy)
					if !p.In(b) {
						continue
					}
					peak = max(peak, glyphs.Pix[glyphs.PixOffset(p.X, p.Y)])
				}
			}
			own := glyphs.Pix[glyphs.PixOffset(x, y)]
			if peak > own {
				ring.Pix[ring.PixOffset(x, y)] = peak - own
			}
		}
	}
	return ring
}

// boxBlur runs two separable box passes of radius r in place.
func boxBlur(a *image.Alpha, r int) {
	if r <= 0 {
		return
	}
	w, h := a.Rect.Dx(), a.Rect.Dy()
	tmp := make([]uint8, len(a.Pix))
	for range 2 {
		blurAxis(a.Pix, tmp, w, h, a.Stride, r, true)
		blurAxis(tmp, a.Pix, w, h, a.Stride, r, false)
	}
}

func blurAxis(src, dst []uint8, w, h, stride, r int, horizontal bool) {
	outer, inner := h, w
	if !horizontal {
		outer, inner = w, h
	}
	for o := range outer {
		at := func(i int) int {
			i = min(max(i, 0), inner-1)
			if horizontal {
				return o*stride + i
			}
			return i*stride + o
		}
		sum := 0
		for i := -r; i <= r; i++ {
			sum += int(src[at(i)])
		}
		span := 2*r + 1
		for i := range inner {
			dst[at(i)] = uint8(sum / span)
			sum += int(src[at(i+r+1)]) - int(src[at(i-r)])
		}
	}
}

func scaleAlpha(a *image.Alpha, factor float64) {
	for i, v := range a.Pix {
		a.Pix[i] = uint8(float64(v) * factor)
	}
}
