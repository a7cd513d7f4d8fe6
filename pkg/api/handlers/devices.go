package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homai-hub/pkg/api/types"
	"github.com/urmzd/homai-hub/pkg/device"
)

// DevicesHandler handles registry endpoints
type DevicesHandler struct {
	hub Hub
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(hub Hub) *DevicesHandler {
	return &DevicesHandler{hub: hub}
}

// ListDevices handles GET /devices
// @Summary      List devices
// @Description  Returns registry devices sorted by id. Filters combine with AND.
// @Tags         devices
// @Produce      json
// @Param        protocol  query     string  false  "Controller key (zigbee, zwave, hue, wemo, lan)"
// @Param        type      query     string  false  "Device type"
// @Param        room      query     string  false  "Room, case-insensitive"
// @Success      200       {object}  types.ListDevicesResponse
// @Failure      400       {object}  types.ErrorResponse  "Unknown device type"
// @Router       /devices [get]
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	protocol := c.Query("protocol")
	typ := device.DeviceType(c.Query("type"))
	room := c.Query("room")

	if typ != "" && !typ.Valid() {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: fmt.Sprintf("unknown device type %q", typ),
		})
		return
	}

	var devices []device.Device
	switch {
	case protocol != "":
		devices = h.hub.GetDevicesByProtocol(protocol)
	case typ != "":
		devices = h.hub.GetDevicesByType(typ)
	case room != "":
		devices = h.hub.GetDevicesByRoom(room)
	default:
		devices = h.hub.GetDevices()
	}

	result := make([]device.Device, 0, len(devices))
	for _, d := range devices {
		if typ != "" && d.Type != typ {
			continue
		}
		if room != "" && !strings.EqualFold(d.Room, room) {
			continue
		}
		result = append(result, d)
	}

	c.JSON(http.StatusOK, types.ListDevicesResponse{
		Devices: result,
		Count:   len(result),
	})
}

// GetDevice handles GET /devices/:id
// @Summary      Get device details
// @Description  Returns a registry device with its last known state
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  types.DeviceResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id} [get]
func (h *DevicesHandler) GetDevice(c *gin.Context) {
	d, err := h.hub.GetDevice(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DeviceResponse{Device: d})
}

// UpdateDevice handles PATCH /devices/:id
// @Summary      Rename a device or assign its room
// @Description  Changes the user-facing name and/or room of a device
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Device id"
// @Param        request  body      types.UpdateDeviceRequest  true  "Fields to change"
// @Success      200      {object}  types.DeviceResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      404      {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id} [patch]
func (h *DevicesHandler) UpdateDevice(c *gin.Context) {
	id := c.Param("id")

	var req types.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Name == nil && req.Room == nil) {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "name or room is required",
		})
		return
	}

	d, err := h.hub.GetDevice(id)
	if err != nil {
		writeError(c, err)
		return
	}
	if req.Name != nil {
		if d, err = h.hub.RenameDevice(id, *req.Name); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.Room != nil {
		if d, err = h.hub.AssignRoom(id, *req.Room); err != nil {
			writeError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, types.DeviceResponse{Device: d})
}
