package mcp

import (
	"time"

	"github.com/urmzd/homai-hub/pkg/device"
	"github.com/urmzd/homai-hub/pkg/integration"
)

// --- Health Tool ---

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status      string                         `json:"status" jsonschema:"description=healthy, degraded or unavailable"`
	Controllers []integration.ControllerStatus `json:"controllers" jsonschema:"description=Lifecycle state per protocol"`
	Devices     int                            `json:"devices" jsonschema:"description=Number of devices in the registry"`
	Timestamp   string                         `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// --- List Devices Tool ---

// ListDevicesInput is the input for the list_devices tool
type ListDevicesInput struct {
	Protocol string `json:"protocol,omitempty" jsonschema:"description=Only devices owned by this controller"`
	Type     string `json:"type,omitempty" jsonschema:"description=Only devices of this type"`
	Room     string `json:"room,omitempty" jsonschema:"description=Only devices in this room"`
}

// ListDevicesOutput is the output for the list_devices tool
type ListDevicesOutput struct {
	Devices []DeviceInfo `json:"devices" jsonschema:"description=Matching devices"`
	Count   int          `json:"count" jsonschema:"description=Number of matching devices"`
}

// DeviceInfo represents a device in tool outputs
type DeviceInfo struct {
	ID           string         `json:"id" jsonschema:"description=Protocol-prefixed device id"`
	Name         string         `json:"name" jsonschema:"description=User-friendly device name"`
	Type         string         `json:"type" jsonschema:"description=Device type (light/switch/outlet/thermostat/lock/sensor/...)"`
	Protocol     string         `json:"protocol" jsonschema:"description=Owning controller"`
	Manufacturer string         `json:"manufacturer,omitempty" jsonschema:"description=Device manufacturer"`
	Model        string         `json:"model,omitempty" jsonschema:"description=Device model"`
	Room         string         `json:"room,omitempty" jsonschema:"description=Assigned room"`
	Capabilities []string       `json:"capabilities" jsonschema:"description=Supported capabilities"`
	Commands     []string       `json:"commands" jsonschema:"description=Commands the device accepts"`
	State        map[string]any `json:"state,omitempty" jsonschema:"description=Last known state"`
	Online       bool           `json:"online" jsonschema:"description=Whether the device answered recently"`
	LastSeen     time.Time      `json:"last_seen" jsonschema:"description=Last time the device was seen"`
}

// DeviceToInfo converts a registry device to its tool representation.
func DeviceToInfo(d *device.Device) DeviceInfo {
	info := DeviceInfo{
		ID:           d.ID,
		Name:         d.Name,
		Type:         string(d.Type),
		Protocol:     d.Protocol,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		Room:         d.Room,
		Capabilities: make([]string, 0, len(d.Capabilities)),
		Commands:     []string{},
		Online:       d.Online,
		LastSeen:     d.LastSeen,
	}
	for _, c := range d.Capabilities {
		info.Capabilities = append(info.Capabilities, string(c))
	}
	for _, t := range device.CommandTypes() {
		if c, _ := device.RequiredCapability(t); d.HasCapability(c) {
			info.Commands = append(info.Commands, string(t))
		}
	}
	if len(d.State) > 0 {
		info.State = make(map[string]any, len(d.State))
		for k, v := range d.State {
			info.State[string(k)] = v
		}
	}
	return info
}

// --- Get Device Tool ---

// GetDeviceOutput is the output for the get_device tool
type GetDeviceOutput struct {
	Device DeviceInfo `json:"device" jsonschema:"description=Device information"`
}

// --- Update Device Tools ---

// UpdateDeviceOutput is the output for the rename_device and assign_room tools
type UpdateDeviceOutput struct {
	Success bool       `json:"success" jsonschema:"description=Whether the update succeeded"`
	Message string     `json:"message" jsonschema:"description=Status message"`
	Device  DeviceInfo `json:"device" jsonschema:"description=Updated device"`
}

// --- Discovery Tools ---

// DiscoverDevicesOutput is the output for the discover_devices tool
type DiscoverDevicesOutput struct {
	Devices []DeviceInfo `json:"devices" jsonschema:"description=Devices found in this pass"`
	Count   int          `json:"count" jsonschema:"description=Number of devices found"`
	Errors  []string     `json:"errors,omitempty" jsonschema:"description=Controllers that failed or timed out"`
}

// PermitJoinOutput is the output for the permit_join tool
type PermitJoinOutput struct {
	Success         bool   `json:"success" jsonschema:"description=Whether pairing was enabled"`
	Message         string `json:"message" jsonschema:"description=Status message"`
	Protocol        string `json:"protocol" jsonschema:"description=Mesh protocol opened for pairing"`
	DurationSeconds int    `json:"duration_seconds" jsonschema:"description=How long pairing stays open"`
}

// --- Control Tools ---

// ControlDeviceOutput is the output for control_device, turn_on and turn_off
type ControlDeviceOutput struct {
	DeviceID string         `json:"device_id" jsonschema:"description=Device that was controlled"`
	Command  string         `json:"command" jsonschema:"description=Command that was applied"`
	State    map[string]any `json:"state" jsonschema:"description=Device state after the command"`
}
