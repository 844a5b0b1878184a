package chromakey

import (
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/gg"
)

// BrightnessFloor is the minimum HSV value a pixel must exceed to be keyed.
// Darker pixels are always foreground so shadows on the subject survive.
const BrightnessFloor = 0.15

// MaxSoftenRadius bounds the edge blur radius in pixels. A pass costs
// O(width*height*radius), so larger radii are rejected.
const MaxSoftenRadius = 64

// SoftenOrder selects whether the edge blur runs before or after the alpha rewrite.
type SoftenOrder int

const (
	// SoftenAfterKey blurs the keyed frame, softening the cut-out edge.
	SoftenAfterKey SoftenOrder = iota
	// SoftenBeforeKey blurs the raw frame and then keys it.
	SoftenBeforeKey
)

// String returns the query/config spelling of the order.
func (o SoftenOrder) String() string {
	if o == SoftenBeforeKey {
		return "before"
	}
	return "after"
}

// ParseSoftenOrder parses "before" or "after" (case-insensitive).
func ParseSoftenOrder(s string) (SoftenOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "after":
		return SoftenAfterKey, nil
	case "before":
		return SoftenBeforeKey, nil
	default:
		return SoftenAfterKey, fmt.Errorf("unknown soften order %q", s)
	}
}

// Params holds the color classification and compositing settings for one pass.
// Hue, saturation and threshold values outside their natural ranges are not
// rejected: they simply produce a classifier that matches nothing or
// everything. Validate rejects the values a pass cannot run with.
type Params struct {
	// MinHue and MaxHue bound the keyed hue band in degrees, inclusive.
	MinHue float64 `json:"min_hue"`
	MaxHue float64 `json:"max_hue"`

	// MinSaturation is a strict lower bound on HSV saturation in [0, 1].
	MinSaturation float64 `json:"min_saturation"`

	// Threshold is the green dominance factor: g must exceed r*Threshold and b*Threshold.
	Threshold float64 `json:"threshold"`

	// ResidualAlpha is written to every background pixel (0 cuts it out entirely).
	ResidualAlpha uint8 `json:"residual_alpha"`

	// SoftenRadius is the Gaussian blur radius in pixels; 0 disables softening.
	SoftenRadius float64 `json:"soften_radius"`

	SoftenOrder SoftenOrder `json:"-"`

	// Background is composited behind the keyed frame.
	Background gg.RGBA `json:"-"`
}

// DefaultParams returns the settings tuned for the vendor's green screen.
func DefaultParams() Params {
	return Params{
		MinHue:        60,
		MaxHue:        180,
		MinSaturation: 0.1,
		Threshold:     1.0,
		ResidualAlpha: 0,
		SoftenRadius:  1,
		SoftenOrder:   SoftenAfterKey,
		Background:    gg.Transparent,
	}
}

// ParseColor parses a "#RRGGBB", "#RRGGBBAA" (or short form) hex colour.
// The empty string and "transparent" yield a fully transparent colour.
func ParseColor(s string) (gg.RGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "transparent") {
		return gg.Transparent, nil
	}
	hex := strings.TrimPrefix(s, "#")
	switch len(hex) {
	case 3, 4, 6, 8:
	default:
		return gg.Transparent, fmt.Errorf("invalid colour %q", s)
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return gg.Transparent, fmt.Errorf("invalid colour %q", s)
		}
	}
	return gg.Hex(hex), nil
}

// Validate reports an error for non-finite settings and for a soften radius
// outside [0, MaxSoftenRadius].
func (p Params) Validate() error {
	floats := []struct {
		name string
		v    float64
	}{
		{"min_hue", p.MinHue},
		{"max_hue", p.MaxHue},
		{"min_saturation", p.MinSaturation},
		{"threshold", p.Threshold},
		{"soften_radius", p.SoftenRadius},
	}
	for _, f := range floats {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be a finite number", f.name)
		}
	}
	if p.SoftenRadius < 0 || p.SoftenRadius > MaxSoftenRadius {
		return fmt.Errorf("soften_radius must be between 0 and %d", MaxSoftenRadius)
	}
	return nil
}
