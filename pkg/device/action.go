package device

// Action is the validated, typed form of a Command. The set of variants is
// closed; controllers switch over it and return ErrUnsupportedCommand for
// variants they cannot express.
type Action interface {
	// Capability is the capability the action acts on.
	Capability() Capability
	isAction()
}

// Power switches a device on or off.
type Power struct{ On bool }

// Toggle inverts the current on/off state.
type Toggle struct{}

// Brightness sets the level in percent (0-100).
type Brightness struct{ Percent int }

// Color sets a hue/saturation color. Value is optional brightness in percent;
// a negative Value leaves brightness untouched.
type Color struct{ HSV HSV }

// ColorTemperature sets white temperature in Kelvin.
type ColorTemperature struct{ Kelvin int }

// Lock locks or unlocks a door lock.
type Lock struct{ Locked bool }

// TargetTemperature sets a thermostat setpoint in Celsius.
type TargetTemperature struct{ Celsius float64 }

func (Power) Capability() Capability             { return CapOnOff }
func (Toggle) Capability() Capability            { return CapOnOff }
func (Brightness) Capability() Capability        { return CapBrightness }
func (Color) Capability() Capability             { return CapColor }
func (ColorTemperature) Capability() Capability  { return CapColorTemperature }
func (Lock) Capability() Capability              { return CapLock }
func (TargetTemperature) Capability() Capability { return CapTargetTemperature }

func (Power) isAction()             {}
func (Toggle) isAction()            {}
func (Brightness) isAction()        {}
func (Color) isAction()             {}
func (ColorTemperature) isAction()  {}
func (Lock) isAction()              {}
func (TargetTemperature) isAction() {}

// StateFor returns the state a successful action leaves behind. Toggle has
// no deterministic result without the previous state and returns nil.
func StateFor(a Action) State {
	switch act := a.(type) {
	case Power:
		return State{CapOnOff: act.On}
	case Brightness:
		s := State{CapBrightness: act.Percent}
		if act.Percent > 0 {
			s[CapOnOff] = true
		}
		return s
	case Color:
		// Color state holds chroma at full value; level lives under brightness.
		s := State{CapColor: HSV{Hue: act.HSV.Hue, Saturation: act.HSV.Saturation, Value: 100}}
		if act.HSV.Value >= 0 {
			s[CapBrightness] = int(act.HSV.Value + 0.5)
		}
		return s
	case ColorTemperature:
		return State{CapColorTemperature: act.Kelvin}
	case Lock:
		return State{CapLock: act.Locked}
	case TargetTemperature:
		return State{CapTargetTemperature: act.Celsius}
	}
	return nil
}
