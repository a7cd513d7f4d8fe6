package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScale(t *testing.T) {
	assert.InDelta(t, 127, Scale(50, 0, 100, 0, 254), 1e-9)
	assert.InDelta(t, 254, Scale(150, 0, 100, 0, 254), 1e-9, "clamped above")
	assert.InDelta(t, 0, Scale(-5, 0, 100, 0, 254), 1e-9, "clamped below")
	assert.InDelta(t, 5, Scale(1, 1, 1, 5, 10), 1e-9, "degenerate input range")
	assert.Equal(t, 65535, ScaleRound(360, 0, 360, 0, 65535))
}

func TestScale_RoundTripWithinOneStep(t *testing.T) {
	for pct := 0; pct <= 100; pct++ {
		raw := ScaleRound(float64(pct), 0, 100, 0, 254)
		back := ScaleRound(float64(raw), 0, 254, 0, 100)
		assert.InDelta(t, pct, back, 1, "percent %d", pct)
	}
}

func TestHSVRoundTrip(t *testing.T) {
	cases := [][3]float64{
		{0, 100, 100}, {120, 100, 100}, {240, 50, 80}, {300, 25, 60}, {45, 70, 10},
	}
	for _, c := range cases {
		h, s, v := RGBToHSV(HSVToRGB(c[0], c[1], c[2]))
		assert.InDelta(t, c[0], h, 1e-6)
		assert.InDelta(t, c[1], s, 1e-6)
		assert.InDelta(t, c[2], v, 1e-6)
	}
}

func TestHSVToRGB_Primaries(t *testing.T) {
	assert.InDeltaMapValues(t,
		map[string]float64{"r": 1, "g": 0, "b": 0},
		rgbMap(HSVToRGB(0, 100, 100)), 1e-9)
	assert.InDeltaMapValues(t,
		map[string]float64{"r": 0, "g": 0, "b": 1},
		rgbMap(HSVToRGB(240, 100, 100)), 1e-9)
	assert.InDeltaMapValues(t,
		map[string]float64{"r": 1, "g": 0, "b": 0},
		rgbMap(HSVToRGB(360, 100, 100)), 1e-9, "hue wraps")
}

func TestXYRoundTrip(t *testing.T) {
	points := [][2]float64{
		{WhiteX, WhiteY}, {0.4, 0.4}, {0.3, 0.3}, {0.2, 0.1}, {0.5, 0.35}, {0.45, 0.41},
	}
	for _, p := range points {
		for _, bri := range []float64{5, 50, 100} {
			x, y := RGBToXY(XYToRGB(p[0], p[1], bri))
			assert.InDelta(t, p[0], x, 1e-3, "x for %v at %v%%", p, bri)
			assert.InDelta(t, p[1], y, 1e-3, "y for %v at %v%%", p, bri)
		}
	}
}

func TestXYRoundTrip_FromRGB(t *testing.T) {
	for _, c := range []RGB{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}, {0.2, 0.6, 0.9}} {
		x, y := RGBToXY(c)
		x2, y2 := RGBToXY(XYToRGB(x, y, 100))
		assert.InDelta(t, x, x2, 1e-3)
		assert.InDelta(t, y, y2, 1e-3)
	}
}

func TestXY_Black(t *testing.T) {
	x, y := RGBToXY(RGB{})
	assert.Equal(t, WhiteX, x)
	assert.Equal(t, WhiteY, y)
	assert.Equal(t, RGB{}, XYToRGB(0.3, 0.3, 0))

	// Black loses the chromaticity; any non-zero brightness keeps it.
	x, y = RGBToXY(XYToRGB(0.4, 0.4, 0))
	assert.Equal(t, WhiteX, x)
	assert.Equal(t, WhiteY, y)
	x, y = RGBToXY(XYToRGB(0.4, 0.4, 1))
	assert.InDelta(t, 0.4, x, 1e-3)
	assert.InDelta(t, 0.4, y, 1e-3)
}

func TestMired(t *testing.T) {
	assert.InDelta(t, 153.85, KelvinToMired(6500), 0.01)
	assert.InDelta(t, 500, KelvinToMired(2000), 1e-9)
	assert.InDelta(t, 2000, MiredToKelvin(KelvinToMired(2000)), 1e-9)
	assert.Zero(t, KelvinToMired(0))
	assert.Zero(t, MiredToKelvin(-3))
}

func rgbMap(c RGB) map[string]float64 {
	return map[string]float64{"r": c.R, "g": c.G, "b": c.B}
}
