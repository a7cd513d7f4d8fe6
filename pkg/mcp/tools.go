package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/urmzd/homai-hub/pkg/device"
)

func commandNames() []string {
	types := device.CommandTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check the hub and the connectivity of every protocol controller"),
		),
		s.handleGetHealth,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_devices",
			mcp.WithDescription("List registry devices with their capabilities and last known state"),
			mcp.WithString("protocol",
				mcp.Description("Only devices owned by this controller"),
				mcp.Enum(device.ProtocolZigbee, device.ProtocolZWave, device.ProtocolHue, device.ProtocolWemo, device.ProtocolLAN),
			),
			mcp.WithString("type",
				mcp.Description("Only devices of this type (light, switch, outlet, thermostat, lock, sensor, camera, speaker, bridge, other)"),
			),
			mcp.WithString("room",
				mcp.Description("Only devices in this room (case-insensitive)"),
			),
		),
		s.handleListDevices,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_device",
			mcp.WithDescription("Get detailed information about a specific device, including the commands it accepts"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device id (e.g. hue-light-3)"),
			),
		),
		s.handleGetDevice,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("discover_devices",
			mcp.WithDescription("Run a discovery pass across every protocol and merge the results into the registry"),
		),
		s.handleDiscoverDevices,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("rename_device",
			mcp.WithDescription("Change a device's user-facing name"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device id"),
			),
			mcp.WithString("new_name",
				mcp.Required(),
				mcp.Description("New name for the device"),
			),
		),
		s.handleRenameDevice,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("assign_room",
			mcp.WithDescription("Assign a device to a room, or clear its room with an empty string"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device id"),
			),
			mcp.WithString("room",
				mcp.Required(),
				mcp.Description("Room name"),
			),
		),
		s.handleAssignRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("control_device",
			mcp.WithDescription("Send a command to a device. The command must match one of the device's capabilities."),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device id"),
			),
			mcp.WithString("command",
				mcp.Required(),
				mcp.Description("Command type"),
				mcp.Enum(commandNames()...),
			),
			mcp.WithObject("params",
				mcp.Description("Command parameters (e.g. {\"value\": 50} for setBrightness, {\"hue\": 120, \"saturation\": 80} for setColor)"),
			),
		),
		s.handleControlDevice,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("turn_on",
			mcp.WithDescription("Turn on a device, optionally setting brightness"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device id"),
			),
			mcp.WithNumber("brightness",
				mcp.Description("Brightness percent (0-100), for dimmable devices"),
				mcp.Min(0),
				mcp.Max(100),
			),
		),
		s.handleTurnOn,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("turn_off",
			mcp.WithDescription("Turn off a device"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device id"),
			),
		),
		s.handleTurnOff,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("permit_join",
			mcp.WithDescription("Open a Zigbee or Z-Wave network so new devices can pair"),
			mcp.WithString("protocol",
				mcp.Required(),
				mcp.Description("Mesh protocol"),
				mcp.Enum(device.ProtocolZigbee, device.ProtocolZWave),
			),
			mcp.WithNumber("duration_seconds",
				mcp.Description("How long to keep pairing open in seconds (default 120, max 600)"),
			),
		),
		s.handlePermitJoin,
	)
}
