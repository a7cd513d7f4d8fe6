package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homai-hub/pkg/api/types"
	"github.com/urmzd/homai-hub/pkg/db"
	"github.com/urmzd/homai-hub/pkg/device"
	"github.com/urmzd/homai-hub/pkg/integration"
)

// Hub is the part of the integration manager the handlers use.
type Hub interface {
	device.EventSubscriber
	Controllers() []integration.ControllerStatus
	DiscoverDevices(ctx context.Context) ([]device.Device, error)
	GetDevices() []device.Device
	GetDevice(id string) (device.Device, error)
	GetDevicesByProtocol(protocol string) []device.Device
	GetDevicesByType(t device.DeviceType) []device.Device
	GetDevicesByRoom(room string) []device.Device
	RenameDevice(id, name string) (device.Device, error)
	AssignRoom(id, room string) (device.Device, error)
	ControlDevice(ctx context.Context, id string, cmd device.Command) (device.Device, error)
	PermitJoin(ctx context.Context, protocol string, duration time.Duration) error
}

var _ Hub = (*integration.Manager)(nil)

// writeError maps a hub error onto a status code and error body.
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, device.ErrDeviceNotFound), errors.Is(err, db.ErrProfileNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, device.ErrControllerUnavailable):
		status, code = http.StatusServiceUnavailable, "controller_unavailable"
	case errors.Is(err, device.ErrUnsupportedCommand):
		status, code = http.StatusBadRequest, "unsupported_command"
	case errors.Is(err, device.ErrValidation):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, device.ErrNotImplemented):
		status, code = http.StatusNotImplemented, "not_implemented"
	case errors.Is(err, device.ErrTransport), errors.Is(err, device.ErrNotConnected):
		status, code = http.StatusBadGateway, "transport_error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, device.ErrDiscoveryTimeout):
		status, code = http.StatusGatewayTimeout, "timeout"
	}
	c.JSON(status, types.ErrorResponse{Error: code, Message: err.Error()})
}
