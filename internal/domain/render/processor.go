// Package render turns resolved artwork into 64x64 frames for the
// device, extracting the colors the light sync needs along the way.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp" // register decoder
)

// CanvasSize is the Pixoo64 screen edge in pixels.
const CanvasSize = 64

// CropMode selects how much of the artwork border to trim before
// resizing. Many covers ship with a baked-in frame that looks bad on
// a 64 pixel canvas.
type CropMode int

const (
	// CropNone keeps the full artwork.
	CropNone CropMode = iota
	// CropStandard trims a border of 5% of the smaller dimension.
	CropStandard
	// CropExtra trims the standard border plus 5 pixels.
	CropExtra
)

// String returns the config name of the crop mode.
func (m CropMode) String() string {
	switch m {
	case CropStandard:
		return "crop"
	case CropExtra:
		return "extra"
	default:
		return "none"
	}
}

// ParseCropMode maps a config string to a CropMode.
func ParseCropMode(s string) CropMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crop":
		return CropStandard
	case "extra", "extra crop":
		return CropExtra
	default:
		return CropNone
	}
}

// kernel for the optional sharpen convolution pass
var sharpenKernel = [9]float64{
	0, -1, 0,
	-1, 5, -1,
	0, -1, 0,
}

// Options controls a single processing run.
type Options struct {
	Crop CropMode

	// Enhancement toggles
	Sharpness bool
	Contrast  bool
	Colors    bool // saturation boost
	Kernel    bool // convolution sharpen

	// SpecialMode composes the cover on a gradient background instead
	// of filling the canvas. Compact shrinks the cover further to
	// leave room for clock/temperature items.
	SpecialMode    bool
	SpecialCompact bool

	// OverlayText is burned into the frame when non-empty.
	OverlayText    string
	TextBackground bool
	FontColor      string // forced hex color, empty selects by contrast
}

// Frame is a processed image ready for the device plus the color
// information the light sync consumes.
type Frame struct {
	GIFBase64  string
	AvgColor   [3]uint8
	Brightness int      // 0-255, derived from the average color
	FontColor  string   // hex, forced or auto black/white
	Palette    []string // up to 3 dominant hex colors for WLED
	CropMode   CropMode
}

// Process decodes, enhances, crops, resizes and encodes artwork bytes.
// The same bytes with the same options always produce the same frame.
func Process(data []byte, opts Options) (*Frame, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img := imaging.Clone(src)

	if opts.Sharpness {
		img = imaging.Sharpen(img, 1.0)
	}
	if opts.Contrast {
		img = imaging.AdjustContrast(img, 20)
	}
	if opts.Colors {
		img = imaging.AdjustSaturation(img, 20)
	}
	if opts.Kernel {
		img = imaging.Convolve3x3(img, sharpenKernel, nil)
	}

	var canvas *image.NRGBA
	if opts.SpecialMode {
		canvas = specialRender(img, opts.SpecialCompact)
	} else {
		if opts.Crop != CropNone {
			img = cropBorder(img, opts.Crop)
		}
		canvas = imaging.Resize(img, CanvasSize, CanvasSize, imaging.Lanczos)
	}

	avg := averageColor(canvas)
	brightness := int((int(avg[0]) + int(avg[1]) + int(avg[2])) / 3)
	fontColor := autoFontColor(brightness)
	if opts.FontColor != "" {
		fontColor = strings.ToLower(opts.FontColor)
	}

	palette := extractPalette(canvas, avg)

	if opts.OverlayText != "" {
		drawOverlay(canvas, opts.OverlayText, fontColor, opts.TextBackground)
	}

	encoded, err := encodeGIF(canvas)
	if err != nil {
		return nil, fmt.Errorf("encode gif: %w", err)
	}

	log.Debug().
		Str("format", format).
		Str("crop", opts.Crop.String()).
		Int("brightness", brightness).
		Msg("Processed artwork frame")

	return &Frame{
		GIFBase64:  encoded,
		AvgColor:   avg,
		Brightness: brightness,
		FontColor:  fontColor,
		Palette:    palette,
		CropMode:   opts.Crop,
	}, nil
}

// cropBorder trims the artwork frame. The border is 5% of the smaller
// dimension, plus 5 pixels in extra mode, and never eats the image.
func cropBorder(img *image.NRGBA, mode CropMode) *image.NRGBA {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	border := w * 5 / 100
	if hb := h * 5 / 100; hb < border {
		border = hb
	}
	if mode == CropExtra {
		border += 5
	}

	if limit := w/2 - 1; border > limit {
		border = limit
	}
	if limit := h/2 - 1; border > limit {
		border = limit
	}
	if border <= 0 {
		return img
	}

	return imaging.Crop(img, image.Rect(border, border, w-border, h-border))
}

// averageColor computes the mean RGB over all pixels.
func averageColor(img *image.NRGBA) [3]uint8 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return [3]uint8{}
	}

	var r, g, bl uint64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			r += uint64(img.Pix[i])
			g += uint64(img.Pix[i+1])
			bl += uint64(img.Pix[i+2])
		}
	}

	n := uint64(total)
	return [3]uint8{uint8(r / n), uint8(g / n), uint8(bl / n)}
}

// autoFontColor picks black on bright artwork and white on dark.
func autoFontColor(brightness int) string {
	if brightness > 128 {
		return "#000000"
	}
	return "#ffffff"
}

// BlackFrame returns a solid black canvas, base64 encoded, shown when
// playback stops and the daemon owns the display.
func BlackFrame() (string, error) {
	return encodeGIF(imaging.New(CanvasSize, CanvasSize, color.NRGBA{A: 255}))
}

// encodeGIF encodes a single-frame GIF and returns it base64 encoded.
func encodeGIF(img *image.NRGBA) (string, error) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
