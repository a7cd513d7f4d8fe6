package meshradio

import (
	"time"

	"github.com/urmzd/homai-hub/pkg/color"
	"github.com/urmzd/homai-hub/pkg/device"
)

// Class describes what a device class announced on the mesh can do.
type Class struct {
	Model        string
	Type         device.DeviceType
	Capabilities []device.Capability
}

// Family describes one mesh radio family: its registration key, framing
// marker, level range and device class table.
type Family struct {
	Key        string
	Name       string
	SOF        byte
	LevelMax   int
	ScanWindow time.Duration
	AckTimeout time.Duration
	Classes    map[uint16]Class
}

// Zigbee returns the Zigbee family. Classes are ZHA device ids.
func Zigbee() Family {
	onOff := []device.Capability{device.CapOnOff}
	dimmable := []device.Capability{device.CapOnOff, device.CapBrightness}
	return Family{
		Key:        device.ProtocolZigbee,
		Name:       "Zigbee",
		SOF:        0xFE,
		LevelMax:   254,
		ScanWindow: 5 * time.Second,
		AckTimeout: 2 * time.Second,
		Classes: map[uint16]Class{
			0x0009: {"Mains Power Outlet", device.TypeOutlet, onOff},
			0x0051: {"Smart Plug", device.TypeOutlet, onOff},
			0x0100: {"On/Off Light", device.TypeLight, onOff},
			0x0101: {"Dimmable Light", device.TypeLight, dimmable},
			0x0102: {"Color Dimmable Light", device.TypeLight, []device.Capability{
				device.CapOnOff, device.CapBrightness, device.CapColor,
			}},
			0x0103: {"On/Off Light Switch", device.TypeSwitch, onOff},
			0x0107: {"Occupancy Sensor", device.TypeSensor, []device.Capability{device.CapMotion}},
			0x010C: {"Color Temperature Light", device.TypeLight, []device.Capability{
				device.CapOnOff, device.CapBrightness, device.CapColorTemperature,
			}},
			0x010D: {"Extended Color Light", device.TypeLight, []device.Capability{
				device.CapOnOff, device.CapBrightness, device.CapColor, device.CapColorTemperature,
			}},
			0x000A: {"Door Lock", device.TypeLock, []device.Capability{device.CapLock}},
			0x0301: {"Thermostat", device.TypeThermostat, []device.Capability{
				device.CapTemperature, device.CapTargetTemperature,
			}},
			0x0302: {"Temperature Sensor", device.TypeSensor, []device.Capability{device.CapTemperature}},
			0x0402: {"IAS Zone", device.TypeSensor, []device.Capability{device.CapContact}},
		},
	}
}

// ZWave returns the Z-Wave family. Classes are generic device classes.
func ZWave() Family {
	return Family{
		Key:        device.ProtocolZWave,
		Name:       "Z-Wave",
		SOF:        0x01,
		LevelMax:   99,
		ScanWindow: 10 * time.Second,
		AckTimeout: 3 * time.Second,
		Classes: map[uint16]Class{
			0x08: {"Thermostat", device.TypeThermostat, []device.Capability{
				device.CapTemperature, device.CapTargetTemperature,
			}},
			0x10: {"Binary Switch", device.TypeSwitch, []device.Capability{device.CapOnOff}},
			0x11: {"Multilevel Switch", device.TypeLight, []device.Capability{
				device.CapOnOff, device.CapBrightness,
			}},
			0x20: {"Binary Sensor", device.TypeSensor, []device.Capability{device.CapMotion}},
			0x21: {"Multilevel Sensor", device.TypeSensor, []device.Capability{device.CapTemperature}},
			0x40: {"Entry Control", device.TypeLock, []device.Capability{device.CapLock}},
		},
	}
}

// FamilyByKey returns the family registered under key.
func FamilyByKey(key string) (Family, bool) {
	switch key {
	case device.ProtocolZigbee:
		return Zigbee(), true
	case device.ProtocolZWave:
		return ZWave(), true
	}
	return Family{}, false
}

func (f Family) levelFromPercent(pct int) byte {
	return byte(color.ScaleRound(float64(pct), 0, 100, 0, float64(f.LevelMax)))
}

func (f Family) percentFromLevel(level byte) int {
	return color.ScaleRound(float64(level), 0, float64(f.LevelMax), 0, 100)
}
