package render

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	specialTopPad     = 8
	specialCoverLarge = 56
	specialCoverSmall = 34
)

// specialRender composes the cover on a 64x64 background derived from
// the artwork's edge colors. In compact mode the cover shrinks to make
// room for clock/temperature items and side gradients fill the gap.
func specialRender(img *image.NRGBA, compact bool) *image.NRGBA {
	coverSize := specialCoverLarge
	if compact {
		coverSize = specialCoverSmall
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	left := edgeColor(img, 0, h/2)
	right := edgeColor(img, w-1, h/2)

	var bg color.NRGBA
	if compact {
		bg = color.NRGBA{A: 255} // black behind the item text
	} else {
		// Darkened average of the edge colors.
		bg = color.NRGBA{
			R: uint8((int(left.R) + int(right.R)) / 2 / 3),
			G: uint8((int(left.G) + int(right.G)) / 2 / 3),
			B: uint8((int(left.B) + int(right.B)) / 2 / 3),
			A: 255,
		}
	}

	canvas := imaging.New(CanvasSize, CanvasSize, bg)

	cover := imaging.Resize(img, coverSize, coverSize, imaging.Lanczos)
	pasteX := (CanvasSize - coverSize) / 2

	if compact {
		gradientWidth := pasteX - 2
		drawGradient(canvas, 0, gradientWidth, specialTopPad, coverSize, left, bg)
		drawGradient(canvas, pasteX+coverSize+2, gradientWidth, specialTopPad, coverSize, bg, right)
	}

	return imaging.Paste(canvas, cover, image.Pt(pasteX, specialTopPad))
}

func edgeColor(img *image.NRGBA, x, y int) color.NRGBA {
	i := img.PixOffset(x, y)
	return color.NRGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: 255}
}

// drawGradient fills a vertical band fading from one color to the other.
func drawGradient(canvas *image.NRGBA, startX, width, top, height int, from, to color.NRGBA) {
	for x := 0; x < width; x++ {
		c := lerpColor(from, to, float64(x)/float64(width))
		for y := top; y < top+height; y++ {
			setPixel(canvas, startX+x, y, c)
		}
	}
}

func lerpColor(a, b color.NRGBA, t float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(float64(a.R)*(1-t) + float64(b.R)*t),
		G: uint8(float64(a.G)*(1-t) + float64(b.G)*t),
		B: uint8(float64(a.B)*(1-t) + float64(b.B)*t),
		A: 255,
	}
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if !(image.Pt(x, y).In(img.Bounds())) {
		return
	}
	i := img.PixOffset(x, y)
	img.Pix[i] = c.R
	img.Pix[i+1] = c.G
	img.Pix[i+2] = c.B
	img.Pix[i+3] = 255
}
