package device

// Capability is a named feature a device exposes. Capabilities are the only
// vocabulary commands may reference.
type Capability string

// Capability tags and the shape of their state values.
const (
	CapOnOff             Capability = "onOff"             // bool
	CapBrightness        Capability = "brightness"        // int 0-100
	CapColor             Capability = "color"             // HSV
	CapColorTemperature  Capability = "colorTemperature"  // int Kelvin
	CapLock              Capability = "lock"              // bool, true = locked
	CapTemperature       Capability = "temperature"       // float64 Celsius reading
	CapTargetTemperature Capability = "targetTemperature" // float64 Celsius setpoint
	CapMotion            Capability = "motion"            // bool
	CapContact           Capability = "contact"           // bool, true = closed
	CapPresence          Capability = "presence"          // bool, host answered on the LAN
)

// Value ranges shared by every controller.
const (
	MinKelvin = 2000
	MaxKelvin = 6500

	MinTargetCelsius = 5.0
	MaxTargetCelsius = 35.0
)

// HSV is a normalized color: hue in degrees, saturation and value in percent.
type HSV struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
	Value      float64 `json:"value"`
}

// Known reports whether c is part of the capability vocabulary.
func (c Capability) Known() bool {
	switch c {
	case CapOnOff, CapBrightness, CapColor, CapColorTemperature, CapLock,
		CapTemperature, CapTargetTemperature, CapMotion, CapContact, CapPresence:
		return true
	}
	return false
}
