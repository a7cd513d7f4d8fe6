package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/urmzd/homai-hub/pkg/device"
)

const (
	defaultJoinSeconds = 120
	maxJoinSeconds     = 600
)

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	controllers := s.hub.Controllers()

	connected := 0
	for _, c := range controllers {
		if c.Connected {
			connected++
		}
	}

	status := "healthy"
	switch {
	case connected == 0:
		status = "unavailable"
	case connected < len(controllers):
		status = "degraded"
	}

	out := GetHealthOutput{
		Status:      status,
		Controllers: controllers,
		Devices:     len(s.hub.GetDevices()),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	protocol, _ := args["protocol"].(string)
	typ, _ := args["type"].(string)
	room, _ := args["room"].(string)

	devices := s.hub.GetDevices()
	infos := make([]DeviceInfo, 0, len(devices))
	for i := range devices {
		d := &devices[i]
		if protocol != "" && d.Protocol != protocol {
			continue
		}
		if typ != "" && string(d.Type) != typ {
			continue
		}
		if room != "" && !strings.EqualFold(d.Room, room) {
			continue
		}
		infos = append(infos, DeviceToInfo(d))
	}

	out := ListDevicesOutput{
		Devices: infos,
		Count:   len(infos),
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d, err := s.hub.GetDevice(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out := GetDeviceOutput{Device: DeviceToInfo(&d)}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleDiscoverDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices, err := s.hub.DiscoverDevices(ctx)
	if devices == nil && err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to discover devices: %s", err)), nil
	}

	out := DiscoverDevicesOutput{
		Devices: make([]DeviceInfo, 0, len(devices)),
		Count:   len(devices),
	}
	for i := range devices {
		out.Devices = append(out.Devices, DeviceToInfo(&devices[i]))
	}
	var joined interface{ Unwrap() []error }
	switch {
	case errors.As(err, &joined):
		for _, e := range joined.Unwrap() {
			out.Errors = append(out.Errors, e.Error())
		}
	case err != nil:
		out.Errors = []string{err.Error()}
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleRenameDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	newName, err := requiredString(request, "new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d, err := s.hub.RenameDevice(id, newName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to rename device: %s", err)), nil
	}

	out := UpdateDeviceOutput{
		Success: true,
		Message: fmt.Sprintf("Device %q renamed to %q", id, d.Name),
		Device:  DeviceToInfo(&d),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleAssignRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	room, ok := request.GetArguments()["room"].(string)
	if !ok {
		return mcp.NewToolResultError(`required parameter "room" is missing`), nil
	}

	d, err := s.hub.AssignRoom(id, room)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to assign room: %s", err)), nil
	}

	msg := fmt.Sprintf("Device %q moved to %q", id, d.Room)
	if d.Room == "" {
		msg = fmt.Sprintf("Device %q has no room", id)
	}
	out := UpdateDeviceOutput{
		Success: true,
		Message: msg,
		Device:  DeviceToInfo(&d),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleControlDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	command, err := requiredString(request, "command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	params, _ := request.GetArguments()["params"].(map[string]any)

	return s.control(ctx, id, device.Command{Type: device.CommandType(command), Params: params})
}

func (s *Server) handleTurnOn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if b, ok := request.GetArguments()["brightness"].(float64); ok {
		// Setting brightness also powers the device on.
		return s.control(ctx, id, device.Command{
			Type:   device.CmdSetBrightness,
			Params: map[string]any{"value": int(b)},
		})
	}
	return s.control(ctx, id, device.Command{Type: device.CmdTurnOn})
}

func (s *Server) handleTurnOff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.control(ctx, id, device.Command{Type: device.CmdTurnOff})
}

func (s *Server) control(ctx context.Context, id string, cmd device.Command) (*mcp.CallToolResult, error) {
	d, err := s.hub.ControlDevice(ctx, id, cmd)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s device: %s", cmd.Type, err)), nil
	}

	out := ControlDeviceOutput{
		DeviceID: d.ID,
		Command:  string(cmd.Type),
		State:    DeviceToInfo(&d).State,
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handlePermitJoin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	protocol, err := requiredString(request, "protocol")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	duration := defaultJoinSeconds
	if d, ok := request.GetArguments()["duration_seconds"].(float64); ok && d > 0 {
		duration = int(d)
	}
	if duration > maxJoinSeconds {
		return mcp.NewToolResultError(fmt.Sprintf("duration cannot exceed %d seconds", maxJoinSeconds)), nil
	}

	if err := s.hub.PermitJoin(ctx, protocol, time.Duration(duration)*time.Second); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to permit join: %s", err)), nil
	}

	out := PermitJoinOutput{
		Success:         true,
		Message:         fmt.Sprintf("Pairing enabled on %s for %d seconds", protocol, duration),
		Protocol:        protocol,
		DurationSeconds: duration,
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// --- helpers ---

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}
