package render

import (
	"image"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog/log"
)

// extractPalette returns up to 3 dominant colors as hex strings,
// skipping pure black and white which wash out on LED strips.
// Falls back to the average color when clustering fails.
func extractPalette(img *image.NRGBA, avg [3]uint8) []string {
	fallback := []string{rgbHex(avg[0], avg[1], avg[2])}

	items, err := prominentcolor.KmeansWithAll(5, img,
		prominentcolor.ArgumentDefault, prominentcolor.DefaultSize, nil)
	if err != nil {
		log.Debug().Err(err).Msg("Palette clustering failed, using average color")
		return fallback
	}

	var out []string
	for _, item := range items {
		r := uint8(item.Color.R)
		g := uint8(item.Color.G)
		b := uint8(item.Color.B)
		if isBlackOrWhite(r, g, b) {
			continue
		}
		hex := rgbHex(r, g, b)
		if contains(out, hex) {
			continue
		}
		out = append(out, hex)
		if len(out) == 3 {
			break
		}
	}

	// Mostly black/white artwork: take whatever the clusters gave us.
	if len(out) == 0 {
		for _, item := range items {
			hex := rgbHex(uint8(item.Color.R), uint8(item.Color.G), uint8(item.Color.B))
			if contains(out, hex) {
				continue
			}
			out = append(out, hex)
			if len(out) == 3 {
				break
			}
		}
	}

	if len(out) == 0 {
		return fallback
	}
	return out
}

func isBlackOrWhite(r, g, b uint8) bool {
	return (r == 0 && g == 0 && b == 0) || (r == 255 && g == 255 && b == 255)
}

func rgbHex(r, g, b uint8) string {
	c := colorful.Color{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	}
	return c.Hex()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
