package chromakey

import "math"

// Hue returns the HSV hue of (r, g, b) in whole degrees in [0, 360).
// Neutral pixels (r == g == b) have hue 0.
func Hue(r, g, b uint8) float64 {
	maxC := max(r, g, b)
	minC := min(r, g, b)
	delta := float64(maxC) - float64(minC)
	if delta == 0 {
		return 0
	}

	fr, fg, fb := float64(r), float64(g), float64(b)
	var h float64
	switch maxC {
	case r:
		h = math.Mod((fg-fb)/delta, 6)
	case g:
		h = (fb-fr)/delta + 2
	default:
		h = (fr-fg)/delta + 4
	}
	// Halves round up, matching the hue tables the defaults were tuned on.
	h = math.Floor(h*60 + 0.5)
	if h < 0 {
		h += 360
	}
	return h
}

// IsBackground reports whether the pixel belongs to the chroma-key background.
func IsBackground(r, g, b uint8, p Params) bool {
	maxC := max(r, g, b)
	minC := min(r, g, b)

	var s float64
	if maxC != 0 {
		s = (float64(maxC) - float64(minC)) / float64(maxC)
	}
	v := float64(maxC) / 255
	h := Hue(r, g, b)

	fg := float64(g)
	return h >= p.MinHue &&
		h <= p.MaxHue &&
		s > p.MinSaturation &&
		v > BrightnessFloor &&
		fg > float64(r)*p.Threshold &&
		fg > float64(b)*p.Threshold
}
