package device

import (
	"sort"
	"time"
)

// DeviceType is the normalized category of a device.
type DeviceType string

// Device type constants
const (
	TypeLight      DeviceType = "light"
	TypeSwitch     DeviceType = "switch"
	TypeOutlet     DeviceType = "outlet"
	TypeThermostat DeviceType = "thermostat"
	TypeLock       DeviceType = "lock"
	TypeSensor     DeviceType = "sensor"
	TypeCamera     DeviceType = "camera"
	TypeSpeaker    DeviceType = "speaker"
	TypeBridge     DeviceType = "bridge"
	TypeOther      DeviceType = "other"
)

// Valid reports whether t is one of the known device types.
func (t DeviceType) Valid() bool {
	switch t {
	case TypeLight, TypeSwitch, TypeOutlet, TypeThermostat, TypeLock,
		TypeSensor, TypeCamera, TypeSpeaker, TypeBridge, TypeOther:
		return true
	}
	return false
}

// Protocol keys used as Device.Protocol and as controller registration keys.
const (
	ProtocolZigbee = "zigbee"
	ProtocolZWave  = "zwave"
	ProtocolHue    = "hue"
	ProtocolWemo   = "wemo"
	ProtocolLAN    = "lan"
)

// Device represents a protocol-agnostic smart home device
type Device struct {
	ID           string       `json:"id"`             // Protocol-prefixed identifier (e.g. hue-light-3)
	Name         string       `json:"name"`           // User-friendly name
	Type         DeviceType   `json:"type"`           // Normalized device category
	Manufacturer string       `json:"manufacturer"`   // Device manufacturer/vendor
	Model        string       `json:"model"`          // Device model
	Protocol     string       `json:"protocol"`       // Key of the owning controller
	Address      string       `json:"address"`        // Network or bus address
	Room         string       `json:"room,omitempty"` // User-assigned room
	Capabilities []Capability `json:"capabilities"`
	State        State        `json:"state"`
	Online       bool         `json:"online"`
	LastSeen     time.Time    `json:"lastSeen"`
}

// State maps a capability to its current value.
type State map[Capability]any

// Clone returns a shallow copy of the state map.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// HasCapability reports whether the device exposes c.
func (d *Device) HasCapability(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no mutable memory with d.
func (d Device) Clone() Device {
	out := d
	out.Capabilities = append([]Capability(nil), d.Capabilities...)
	out.State = d.State.Clone()
	return out
}

// PruneState removes state keys that are not in the capability set.
func (d *Device) PruneState() {
	for k := range d.State {
		if !d.HasCapability(k) {
			delete(d.State, k)
		}
	}
}

// NormalizeCapabilities sorts and de-duplicates the capability set.
func (d *Device) NormalizeCapabilities() {
	seen := make(map[Capability]struct{}, len(d.Capabilities))
	out := d.Capabilities[:0]
	for _, c := range d.Capabilities {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	d.Capabilities = out
}

// Result is the outcome of a successful control call.
type Result struct {
	Success bool  `json:"success"`
	State   State `json:"state,omitempty"` // Partial state to merge into the device
}
