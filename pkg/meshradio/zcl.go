package meshradio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/urmzd/homai-hub/pkg/color"
	"github.com/urmzd/homai-hub/pkg/device"
)

// ZCL cluster IDs, shared by both radio families.
const (
	ClusterOnOff       uint16 = 0x0006
	ClusterLevel       uint16 = 0x0008
	ClusterDoorLock    uint16 = 0x0101
	ClusterThermostat  uint16 = 0x0201
	ClusterColor       uint16 = 0x0300
	ClusterTemperature uint16 = 0x0402
	ClusterOccupancy   uint16 = 0x0406
	ClusterIASZone     uint16 = 0x0500
)

// Color cluster payloads lead with the ZCL command id so hue/saturation and
// color temperature can share the cluster.
const (
	colorCmdHueSat    uint8 = 0x06
	colorCmdColorTemp uint8 = 0x0A
)

// Hue and saturation travel as single bytes.
const colorByteMax = 254

// Instruction is one cluster write produced from an action.
type Instruction struct {
	Cluster uint16
	Payload []byte
}

// EncodeAction translates a typed action into cluster instructions. Toggle
// must be resolved to Power by the caller since the wire has no toggle.
func EncodeAction(fam Family, action device.Action) ([]Instruction, error) {
	switch a := action.(type) {
	case device.Power:
		return []Instruction{{ClusterOnOff, []byte{boolByte(a.On)}}}, nil
	case device.Brightness:
		return []Instruction{{ClusterLevel, []byte{fam.levelFromPercent(a.Percent)}}}, nil
	case device.Color:
		out := []Instruction{{ClusterColor, []byte{
			colorCmdHueSat,
			byte(color.ScaleRound(a.HSV.Hue, 0, 360, 0, colorByteMax)),
			byte(color.ScaleRound(a.HSV.Saturation, 0, 100, 0, colorByteMax)),
		}}}
		if a.HSV.Value >= 0 {
			pct := int(math.Round(a.HSV.Value))
			out = append(out, Instruction{ClusterLevel, []byte{fam.levelFromPercent(pct)}})
		}
		return out, nil
	case device.ColorTemperature:
		mired := uint16(math.Round(color.KelvinToMired(float64(a.Kelvin))))
		return []Instruction{{ClusterColor, binary.LittleEndian.AppendUint16([]byte{colorCmdColorTemp}, mired)}}, nil
	case device.Lock:
		return []Instruction{{ClusterDoorLock, []byte{boolByte(a.Locked)}}}, nil
	case device.TargetTemperature:
		centi := int16(math.Round(a.Celsius * 100))
		return []Instruction{{ClusterThermostat, binary.LittleEndian.AppendUint16([]byte{}, uint16(centi))}}, nil
	}
	return nil, fmt.Errorf("%w: %T on %s", device.ErrUnsupportedCommand, action, fam.Key)
}

// DecodeAction is the inverse of EncodeAction for a single instruction.
func DecodeAction(fam Family, in Instruction) (device.Action, error) {
	p := in.Payload
	switch {
	case in.Cluster == ClusterOnOff && len(p) == 1:
		return device.Power{On: p[0] != 0}, nil
	case in.Cluster == ClusterLevel && len(p) == 1:
		return device.Brightness{Percent: fam.percentFromLevel(p[0])}, nil
	case in.Cluster == ClusterColor && len(p) == 3 && p[0] == colorCmdColorTemp:
		return device.ColorTemperature{Kelvin: kelvinFromMired(binary.LittleEndian.Uint16(p[1:]))}, nil
	case in.Cluster == ClusterColor && len(p) == 3 && p[0] == colorCmdHueSat:
		return device.Color{HSV: hsvFromBytes(p[1], p[2], -1)}, nil
	case in.Cluster == ClusterDoorLock && len(p) == 1:
		return device.Lock{Locked: p[0] != 0}, nil
	case in.Cluster == ClusterThermostat && len(p) == 2:
		return device.TargetTemperature{Celsius: centiCelsius(p)}, nil
	}
	return nil, fmt.Errorf("%w: cluster %#04x with %d byte payload", device.ErrProtocolParse, in.Cluster, len(p))
}

// DecodeReport maps an inbound state report to partial device state.
func DecodeReport(fam Family, cluster uint16, p []byte) (device.State, error) {
	switch {
	case cluster == ClusterOnOff && len(p) >= 1:
		return device.State{device.CapOnOff: p[0] != 0}, nil
	case cluster == ClusterLevel && len(p) >= 1:
		return device.State{device.CapBrightness: fam.percentFromLevel(p[0])}, nil
	case cluster == ClusterColor && len(p) >= 3 && p[0] == colorCmdColorTemp:
		return device.State{device.CapColorTemperature: kelvinFromMired(binary.LittleEndian.Uint16(p[1:]))}, nil
	case cluster == ClusterColor && len(p) >= 3 && p[0] == colorCmdHueSat:
		return device.State{device.CapColor: hsvFromBytes(p[1], p[2], 100)}, nil
	case cluster == ClusterDoorLock && len(p) >= 1:
		return device.State{device.CapLock: p[0] != 0}, nil
	case cluster == ClusterThermostat && len(p) >= 2:
		return device.State{device.CapTargetTemperature: centiCelsius(p)}, nil
	case cluster == ClusterTemperature && len(p) >= 2:
		return device.State{device.CapTemperature: centiCelsius(p)}, nil
	case cluster == ClusterOccupancy && len(p) >= 1:
		return device.State{device.CapMotion: p[0]&0x01 != 0}, nil
	case cluster == ClusterIASZone && len(p) >= 1:
		// Alarm1 bit set means the contact is open.
		return device.State{device.CapContact: p[0]&0x01 == 0}, nil
	}
	return nil, fmt.Errorf("%w: report on cluster %#04x with %d byte payload", device.ErrProtocolParse, cluster, len(p))
}

func hsvFromBytes(h, s byte, value float64) device.HSV {
	return device.HSV{
		Hue:        color.Scale(float64(h), 0, colorByteMax, 0, 360),
		Saturation: color.Scale(float64(s), 0, colorByteMax, 0, 100),
		Value:      value,
	}
}

func kelvinFromMired(m uint16) int {
	return int(math.Round(color.MiredToKelvin(float64(m))))
}

func centiCelsius(p []byte) float64 {
	return float64(int16(binary.LittleEndian.Uint16(p))) / 100
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
