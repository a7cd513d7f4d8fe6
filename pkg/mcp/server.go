package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urmzd/homai-hub/pkg/device"
	"github.com/urmzd/homai-hub/pkg/integration"
)

// Hub is the part of the integration manager the tools use.
type Hub interface {
	Controllers() []integration.ControllerStatus
	DiscoverDevices(ctx context.Context) ([]device.Device, error)
	GetDevices() []device.Device
	GetDevice(id string) (device.Device, error)
	RenameDevice(id, name string) (device.Device, error)
	AssignRoom(id, room string) (device.Device, error)
	ControlDevice(ctx context.Context, id string, cmd device.Command) (device.Device, error)
	PermitJoin(ctx context.Context, protocol string, duration time.Duration) error
}

var _ Hub = (*integration.Manager)(nil)

// Server wraps the MCP server with the hub's device control functionality
type Server struct {
	mcpServer *server.MCPServer
	hub       Hub
}

// NewServer creates a new MCP server for device control
func NewServer(hub Hub, version string) *Server {
	s := &Server{hub: hub}

	s.mcpServer = server.NewMCPServer(
		"homai-hub",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.registerTools()

	return s
}

// ServeStdio starts the MCP server using stdio transport
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
