package hue

import (
	"math"
	"strings"

	"github.com/amimof/huego"
	"github.com/urmzd/homai-hub/pkg/color"
	"github.com/urmzd/homai-hub/pkg/device"
)

// Bridge value ranges.
const (
	briMax = 254
	hueMax = 65535
	satMax = 254
)

// profile is what a Hue light type string says about a light.
type profile struct {
	typ  device.DeviceType
	caps []device.Capability
}

// profileFor maps the bridge's light type to a device type and capabilities.
func profileFor(lightType string) profile {
	t := strings.ToLower(lightType)
	switch {
	case strings.Contains(t, "on/off plug"):
		return profile{device.TypeOutlet, []device.Capability{device.CapOnOff}}
	case strings.Contains(t, "dimmable plug"):
		return profile{device.TypeOutlet, []device.Capability{device.CapOnOff, device.CapBrightness}}
	case strings.Contains(t, "extended color"):
		return profile{device.TypeLight, []device.Capability{
			device.CapOnOff, device.CapBrightness, device.CapColor, device.CapColorTemperature,
		}}
	case strings.Contains(t, "color temperature"):
		return profile{device.TypeLight, []device.Capability{
			device.CapOnOff, device.CapBrightness, device.CapColorTemperature,
		}}
	case strings.Contains(t, "color"):
		return profile{device.TypeLight, []device.Capability{
			device.CapOnOff, device.CapBrightness, device.CapColor,
		}}
	case strings.Contains(t, "dimmable"):
		return profile{device.TypeLight, []device.Capability{device.CapOnOff, device.CapBrightness}}
	default:
		return profile{device.TypeLight, []device.Capability{device.CapOnOff}}
	}
}

// percentFromBri converts bridge brightness (1-254) to percent.
func percentFromBri(bri uint8) int {
	return color.ScaleRound(float64(bri), 0, briMax, 0, 100)
}

// briFromPercent converts percent to bridge brightness. The bridge rejects 0.
func briFromPercent(pct float64) uint8 {
	bri := color.ScaleRound(pct, 0, 100, 0, briMax)
	if bri < 1 {
		bri = 1
	}
	return uint8(bri)
}

// hsvFromState reads the light's current chroma according to its color mode.
func hsvFromState(s *huego.State) device.HSV {
	if s.ColorMode == "xy" && len(s.Xy) == 2 {
		h, sat, _ := color.RGBToHSV(color.XYToRGB(float64(s.Xy[0]), float64(s.Xy[1]), 100))
		return device.HSV{Hue: h, Saturation: sat, Value: 100}
	}
	return device.HSV{
		Hue:        color.Scale(float64(s.Hue), 0, hueMax, 0, 360),
		Saturation: color.Scale(float64(s.Sat), 0, satMax, 0, 100),
		Value:      100,
	}
}

// xyFromHSV converts chroma to the bridge's xy pair.
func xyFromHSV(c device.HSV) []float32 {
	x, y := color.RGBToXY(color.HSVToRGB(c.Hue, c.Saturation, 100))
	return []float32{float32(x), float32(y)}
}

// stateFromLight reads normalized state limited to caps.
func stateFromLight(s *huego.State, caps []device.Capability) device.State {
	out := make(device.State)
	if s == nil {
		return out
	}
	for _, c := range caps {
		switch c {
		case device.CapOnOff:
			out[c] = s.On
		case device.CapBrightness:
			out[c] = percentFromBri(s.Bri)
		case device.CapColor:
			out[c] = hsvFromState(s)
		case device.CapColorTemperature:
			if s.Ct > 0 {
				out[c] = int(math.Round(color.MiredToKelvin(float64(s.Ct))))
			}
		}
	}
	return out
}

// stateForAction builds the bridge request for an action. Toggle must be
// resolved to Power beforehand.
func stateForAction(a device.Action) (huego.State, bool) {
	switch act := a.(type) {
	case device.Power:
		return huego.State{On: act.On}, true
	case device.Brightness:
		if act.Percent <= 0 {
			return huego.State{On: false}, true
		}
		return huego.State{On: true, Bri: briFromPercent(float64(act.Percent))}, true
	case device.Color:
		s := huego.State{On: true, Xy: xyFromHSV(act.HSV)}
		if act.HSV.Value >= 0 {
			s.Bri = briFromPercent(act.HSV.Value)
		}
		return s, true
	case device.ColorTemperature:
		mired := math.Round(color.KelvinToMired(float64(act.Kelvin)))
		return huego.State{On: true, Ct: uint16(mired)}, true
	}
	return huego.State{}, false
}
