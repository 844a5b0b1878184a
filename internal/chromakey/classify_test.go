package chromakey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHue(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    float64
	}{
		{"red", 255, 0, 0, 0},
		{"yellow", 255, 255, 0, 60},
		{"green", 0, 255, 0, 120},
		{"cyan", 0, 255, 255, 180},
		{"blue", 0, 0, 255, 240},
		{"magenta", 255, 0, 255, 300},
		{"gray", 128, 128, 128, 0},
		{"black", 0, 0, 0, 0},
		{"teal green", 100, 150, 140, 168},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Hue(tt.r, tt.g, tt.b))
		})
	}
}

func TestIsBackground(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name    string
		r, g, b uint8
		want    bool
	}{
		{"pure green", 0, 255, 0, true},
		{"screen green", 40, 200, 60, true},
		{"teal green", 100, 150, 140, true},
		{"red", 255, 0, 0, false},
		{"blue", 0, 0, 255, false},
		{"skin tone", 224, 172, 105, false},
		{"white", 255, 255, 255, false},
		{"too dark green", 0, 30, 0, false},
		{"washed out green", 235, 255, 240, false},
		{"yellow fails green dominance", 255, 255, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBackground(tt.r, tt.g, tt.b, p))
		})
	}
}

func TestIsBackground_threshold(t *testing.T) {
	p := DefaultParams()
	assert.True(t, IsBackground(100, 150, 140, p))

	p.Threshold = 1.1
	assert.False(t, IsBackground(100, 150, 140, p), "g=150 does not exceed b*1.1=154")
}

func TestIsBackground_neutralGraysNeverKeyed(t *testing.T) {
	bands := []Params{
		DefaultParams(),
		{MinHue: 0, MaxHue: 360, MinSaturation: 0, Threshold: 0},
		{MinHue: -1, MaxHue: 1000, MinSaturation: 0, Threshold: 1},
	}
	for _, p := range bands {
		for v := 0; v <= 255; v++ {
			c := uint8(v)
			assert.False(t, IsBackground(c, c, c, p), "gray %d keyed with %+v", v, p)
		}
	}
}

func TestIsBackground_dominantGreenInBand(t *testing.T) {
	p := DefaultParams()
	for r := 0; r <= 200; r += 8 {
		for b := 0; b <= 200; b += 8 {
			g := uint8(255)
			h := Hue(uint8(r), g, uint8(b))
			if h < p.MinHue || h > p.MaxHue {
				continue
			}
			assert.True(t, IsBackground(uint8(r), g, uint8(b), p), "r=%d b=%d", r, b)
		}
	}
}

func TestIsBackground_invertedBandMatchesNothing(t *testing.T) {
	p := DefaultParams()
	p.MinHue, p.MaxHue = 200, 100
	assert.False(t, IsBackground(0, 255, 0, p))
}

func TestIsBackground_brightnessFloor(t *testing.T) {
	p := DefaultParams()
	// max 38 -> v ~0.149, just under the floor
	assert.False(t, IsBackground(0, 38, 0, p))
	// max 39 -> v ~0.153
	assert.True(t, IsBackground(0, 39, 0, p))
}
