package compositor

import (
	"fmt"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// DefaultFontSize is the caption size in pixels on a 720 px wide canvas.
const DefaultFontSize = 52

// DefaultFace returns the bold caption face at size pixels.
func DefaultFace(size float64) (font.Face, error) {
	if size <= 0 {
		size = DefaultFontSize
	}
	parsed, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse caption font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("caption face: %w", err)
	}
	return face, nil
}

// WrapText greedily breaks text into lines no wider than maxWidth pixels as
// measured with face. A word wider than maxWidth gets a line of its own.
func WrapText(face font.Face, text string, maxWidth int) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		if line == "" {
			line = word
			continue
		}
		candidate := line + " " + word
		if font.MeasureString(face, candidate).Ceil() > maxWidth {
			lines = append(lines, line)
			line = word
			continue
		}
		line = candidate
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
