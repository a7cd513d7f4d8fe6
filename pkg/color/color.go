// Package color holds the pure conversion functions shared by lighting
// controllers: linear range scaling, HSV and RGB, gamma-corrected RGB to CIE
// xy chromaticity and back, and Kelvin to mired.
//
// Every function is side-effect free. Forward and inverse pairs round-trip
// within rounding tolerance for in-gamut inputs.
package color

import "math"

// RGB is a color with channels in [0, 1] (gamma-encoded sRGB).
type RGB struct {
	R, G, B float64
}

// D65 white point, returned for black where chromaticity is undefined.
const (
	WhiteX = 0.3127
	WhiteY = 0.3290
)

// Scale maps v linearly from [inMin, inMax] onto [outMin, outMax], clamping
// v to the input range first.
func Scale(v, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return outMin
	}
	v = Clamp(v, math.Min(inMin, inMax), math.Max(inMin, inMax))
	return outMin + (v-inMin)*(outMax-outMin)/(inMax-inMin)
}

// ScaleRound is Scale rounded to the nearest integer.
func ScaleRound(v, inMin, inMax, outMin, outMax float64) int {
	return int(math.Round(Scale(v, inMin, inMax, outMin, outMax)))
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HSVToRGB converts hue in degrees, saturation and value in percent to RGB.
func HSVToRGB(hue, sat, val float64) RGB {
	h := math.Mod(hue, 360)
	if h < 0 {
		h += 360
	}
	s := Clamp(sat, 0, 100) / 100
	v := Clamp(val, 0, 100) / 100

	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return RGB{R: r + m, G: g + m, B: b + m}
}

// RGBToHSV converts RGB to hue in degrees, saturation and value in percent.
func RGBToHSV(c RGB) (hue, sat, val float64) {
	r, g, b := Clamp(c.R, 0, 1), Clamp(c.G, 0, 1), Clamp(c.B, 0, 1)
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	switch {
	case delta == 0:
		hue = 0
	case max == r:
		hue = 60 * math.Mod((g-b)/delta, 6)
	case max == g:
		hue = 60 * ((b-r)/delta + 2)
	default:
		hue = 60 * ((r-g)/delta + 4)
	}
	if hue < 0 {
		hue += 360
	}
	if max > 0 {
		sat = delta / max * 100
	}
	return hue, sat, max * 100
}

// RGBToXY converts gamma-encoded RGB to CIE 1931 xy chromaticity using the
// wide-gamut D65 matrix Hue bridges expect. Black has no chromaticity and
// maps to the D65 white point.
func RGBToXY(c RGB) (x, y float64) {
	r := gammaExpand(Clamp(c.R, 0, 1))
	g := gammaExpand(Clamp(c.G, 0, 1))
	b := gammaExpand(Clamp(c.B, 0, 1))

	X := r*0.664511 + g*0.154324 + b*0.162028
	Y := r*0.283881 + g*0.668433 + b*0.047685
	Z := r*0.000088 + g*0.072310 + b*0.986039

	sum := X + Y + Z
	if sum == 0 {
		return WhiteX, WhiteY
	}
	return X / sum, Y / sum
}

// XYToRGB converts xy chromaticity at the given brightness percent to
// gamma-encoded RGB. Out-of-gamut components are clipped to zero; the result
// is normalized so the brightest channel equals the brightness fraction.
//
// Zero brightness yields black, so xy does not survive a round trip through
// RGB at 0%. Convert at full brightness to read the color of a dimmed or off
// light and carry brightness separately.
func XYToRGB(x, y, briPercent float64) RGB {
	bri := Clamp(briPercent, 0, 100) / 100
	if y <= 0 || bri == 0 {
		return RGB{}
	}

	Y := 1.0
	X := (Y / y) * x
	Z := (Y / y) * (1 - x - y)

	r := X*1.656492 - Y*0.354851 - Z*0.255038
	g := -X*0.707196 + Y*1.655397 + Z*0.036152
	b := X*0.051713 - Y*0.121364 + Z*1.011530

	r, g, b = math.Max(r, 0), math.Max(g, 0), math.Max(b, 0)
	// Scaling in linear space keeps chromaticity intact.
	if max := math.Max(r, math.Max(g, b)); max > 0 {
		r, g, b = r/max*bri, g/max*bri, b/max*bri
	}

	return RGB{R: gammaCompress(r), G: gammaCompress(g), B: gammaCompress(b)}
}

// KelvinToMired converts a color temperature in Kelvin to mireds.
func KelvinToMired(k float64) float64 {
	if k <= 0 {
		return 0
	}
	return 1e6 / k
}

// MiredToKelvin converts mireds to Kelvin.
func MiredToKelvin(m float64) float64 {
	if m <= 0 {
		return 0
	}
	return 1e6 / m
}

func gammaExpand(c float64) float64 {
	if c > 0.04045 {
		return math.Pow((c+0.055)/1.055, 2.4)
	}
	return c / 12.92
}

func gammaCompress(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}
