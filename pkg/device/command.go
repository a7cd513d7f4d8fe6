package device

import (
	"encoding/json"
)

// CommandType is the fixed command vocabulary accepted by the hub.
type CommandType string

// Command types
const (
	CmdTurnOn               CommandType = "turnOn"
	CmdTurnOff              CommandType = "turnOff"
	CmdToggle               CommandType = "toggle"
	CmdSetBrightness        CommandType = "setBrightness"
	CmdSetColor             CommandType = "setColor"
	CmdSetColorTemperature  CommandType = "setColorTemperature"
	CmdLock                 CommandType = "lock"
	CmdUnlock               CommandType = "unlock"
	CmdSetTargetTemperature CommandType = "setTargetTemperature"
)

// Command is a request to change a device, as received from callers.
type Command struct {
	Type   CommandType    `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// commandSpec binds a command type to the capability it requires and the
// JSON Schema its params must satisfy.
type commandSpec struct {
	requires Capability
	params   json.RawMessage
}

var noParams = json.RawMessage(`{"type": "object", "maxProperties": 0}`)

var commandTable = map[CommandType]commandSpec{
	CmdTurnOn:  {requires: CapOnOff, params: noParams},
	CmdTurnOff: {requires: CapOnOff, params: noParams},
	CmdToggle:  {requires: CapOnOff, params: noParams},
	CmdSetBrightness: {requires: CapBrightness, params: json.RawMessage(`{
		"type": "object",
		"properties": {"value": {"type": "integer", "minimum": 0, "maximum": 100}},
		"required": ["value"],
		"additionalProperties": false
	}`)},
	CmdSetColor: {requires: CapColor, params: json.RawMessage(`{
		"type": "object",
		"properties": {
			"hue": {"type": "number", "minimum": 0, "maximum": 360},
			"saturation": {"type": "number", "minimum": 0, "maximum": 100},
			"value": {"type": "number", "minimum": 0, "maximum": 100}
		},
		"required": ["hue", "saturation"],
		"additionalProperties": false
	}`)},
	CmdSetColorTemperature: {requires: CapColorTemperature, params: json.RawMessage(`{
		"type": "object",
		"properties": {"value": {"type": "integer", "minimum": 2000, "maximum": 6500}},
		"required": ["value"],
		"additionalProperties": false
	}`)},
	CmdLock:   {requires: CapLock, params: noParams},
	CmdUnlock: {requires: CapLock, params: noParams},
	CmdSetTargetTemperature: {requires: CapTargetTemperature, params: json.RawMessage(`{
		"type": "object",
		"properties": {"value": {"type": "number", "minimum": 5, "maximum": 35}},
		"required": ["value"],
		"additionalProperties": false
	}`)},
}

// RequiredCapability returns the capability a command type needs.
// ok is false for types outside the vocabulary.
func RequiredCapability(t CommandType) (Capability, bool) {
	entry, ok := commandTable[t]
	if !ok {
		return "", false
	}
	return entry.requires, true
}

// CommandTypes returns the full command vocabulary.
func CommandTypes() []CommandType {
	return []CommandType{
		CmdTurnOn, CmdTurnOff, CmdToggle, CmdSetBrightness, CmdSetColor,
		CmdSetColorTemperature, CmdLock, CmdUnlock, CmdSetTargetTemperature,
	}
}
