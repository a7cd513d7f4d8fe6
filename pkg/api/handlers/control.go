package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homai-hub/pkg/api/types"
	"github.com/urmzd/homai-hub/pkg/device"
)

// ControlHandler handles device command endpoints
type ControlHandler struct {
	hub Hub
}

// NewControlHandler creates a new control handler
func NewControlHandler(hub Hub) *ControlHandler {
	return &ControlHandler{hub: hub}
}

// SendCommand handles POST /devices/:id/commands
// @Summary      Send a command
// @Description  Validates the command against the device's capabilities and routes it to the owning controller
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Device id"
// @Param        request  body      types.CommandRequest  true  "Command and params"
// @Success      200      {object}  types.CommandResponse
// @Failure      400      {object}  types.ErrorResponse  "Unsupported command or invalid params"
// @Failure      404      {object}  types.ErrorResponse  "Device not found"
// @Failure      501      {object}  types.ErrorResponse  "Protocol cannot perform the command"
// @Failure      502      {object}  types.ErrorResponse  "Device did not respond"
// @Failure      503      {object}  types.ErrorResponse  "Controller unavailable"
// @Router       /devices/{id}/commands [post]
func (h *ControlHandler) SendCommand(c *gin.Context) {
	var req types.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "command type is required",
		})
		return
	}

	cmd := device.Command{Type: req.Type, Params: req.Params}
	d, err := h.hub.ControlDevice(c.Request.Context(), c.Param("id"), cmd)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.CommandResponse{
		Success: true,
		Device:  d,
		State:   d.State,
	})
}
