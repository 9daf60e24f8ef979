package render

import (
	"image"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	glyphWidth   = 7 // basicfont.Face7x13 advance
	lineHeight   = 13
	maxLineChars = CanvasSize / glyphWidth
	maxLines     = 2
)

// drawOverlay burns text into the bottom of the canvas. Long text
// wraps onto a second line; anything beyond that is ellipsized.
func drawOverlay(canvas *image.NRGBA, text, fontHex string, background bool) {
	lines := wrapText(text, maxLineChars, maxLines)
	if len(lines) == 0 {
		return
	}

	textColor := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	if c, err := colorful.Hex(fontHex); err == nil {
		r, g, b := c.RGB255()
		textColor = color.NRGBA{R: r, G: g, B: b, A: 255}
	}

	top := CanvasSize - len(lines)*lineHeight
	if background {
		shade(canvas, image.Rect(0, top, CanvasSize, CanvasSize))
	}

	face := basicfont.Face7x13
	for i, line := range lines {
		width := len(line) * glyphWidth
		x := (CanvasSize - width) / 2
		if x < 0 {
			x = 0
		}
		baseline := top + i*lineHeight + face.Ascent

		d := font.Drawer{
			Dst:  canvas,
			Src:  image.NewUniform(textColor),
			Face: face,
			Dot:  fixed.P(x, baseline),
		}
		d.DrawString(line)
	}
}

// wrapText splits text into at most maxLines lines of maxChars,
// breaking on words where possible.
func wrapText(text string, maxChars, maxLines int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		// Hard-break words longer than a line.
		for len(word) > maxChars {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			lines = append(lines, word[:maxChars])
			word = word[maxChars:]
		}

		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= maxChars:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}

		if len(lines) >= maxLines {
			break
		}
	}
	if current != "" && len(lines) < maxLines {
		lines = append(lines, current)
	}

	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	// Mark truncation on the last visible line.
	if len(lines) == maxLines {
		joined := strings.Join(lines, " ")
		if len(joined) < len(strings.Join(strings.Fields(text), " ")) {
			last := lines[maxLines-1]
			if len(last) > maxChars-1 {
				last = last[:maxChars-1]
			}
			lines[maxLines-1] = last + "…"
		}
	}

	return lines
}

// shade darkens a rectangle to roughly 40% of its brightness so the
// text stays readable on busy artwork.
func shade(img *image.NRGBA, rect image.Rectangle) {
	rect = rect.Intersect(img.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(int(img.Pix[i]) * 2 / 5)
			img.Pix[i+1] = uint8(int(img.Pix[i+1]) * 2 / 5)
			img.Pix[i+2] = uint8(int(img.Pix[i+2]) * 2 / 5)
		}
	}
}
