package device

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/urmzd/homai-hub/pkg/device/schema"
)

// CommandValidator checks commands against a device's capability set and the
// parameter schema of the command type, and parses them into Actions.
type CommandValidator struct {
	schemas *schema.Validator
}

// NewCommandValidator creates a CommandValidator backed by v.
func NewCommandValidator(v *schema.Validator) *CommandValidator {
	if v == nil {
		v = schema.NewValidator()
	}
	return &CommandValidator{schemas: v}
}

// Validate returns the typed Action for cmd, or an error wrapping
// ErrUnsupportedCommand when the command cannot be applied to d.
func (cv *CommandValidator) Validate(d *Device, cmd Command) (Action, error) {
	entry, ok := commandTable[cmd.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command type %q", ErrUnsupportedCommand, cmd.Type)
	}
	if !d.HasCapability(entry.requires) {
		return nil, fmt.Errorf("%w: %s requires capability %q", ErrUnsupportedCommand, cmd.Type, entry.requires)
	}

	params, err := normalizeParams(cmd.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %s params: %v", ErrUnsupportedCommand, cmd.Type, err)
	}
	if err := cv.schemas.Validate(entry.params, params); err != nil {
		return nil, fmt.Errorf("%w: %s params: %v", ErrUnsupportedCommand, cmd.Type, err)
	}

	return parseAction(cmd.Type, params), nil
}

// normalizeParams re-decodes params through JSON so numbers arrive as
// json.Number regardless of whether the caller built the map in Go or
// decoded it from a request body.
func normalizeParams(params map[string]any) (map[string]any, error) {
	if len(params) == 0 {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// parseAction converts schema-valid params into an Action.
func parseAction(t CommandType, params map[string]any) Action {
	switch t {
	case CmdTurnOn:
		return Power{On: true}
	case CmdTurnOff:
		return Power{On: false}
	case CmdToggle:
		return Toggle{}
	case CmdSetBrightness:
		return Brightness{Percent: int(number(params["value"]))}
	case CmdSetColor:
		hsv := HSV{
			Hue:        number(params["hue"]),
			Saturation: number(params["saturation"]),
			Value:      -1,
		}
		if _, ok := params["value"]; ok {
			hsv.Value = number(params["value"])
		}
		return Color{HSV: hsv}
	case CmdSetColorTemperature:
		return ColorTemperature{Kelvin: int(number(params["value"]))}
	case CmdLock:
		return Lock{Locked: true}
	case CmdUnlock:
		return Lock{Locked: false}
	case CmdSetTargetTemperature:
		return TargetTemperature{Celsius: number(params["value"])}
	}
	return nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case json.Number:
		f, _ := n.Float64()
		return f
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
