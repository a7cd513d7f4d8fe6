package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homai-hub/pkg/api/types"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	hub Hub
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(hub Hub) *HealthHandler {
	return &HealthHandler{hub: hub}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Returns the lifecycle state of every registered controller
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Every controller is connected"
// @Failure      503  {object}  types.HealthResponse  "No controller is connected"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	controllers := h.hub.Controllers()

	connected := 0
	for _, s := range controllers {
		if s.Connected {
			connected++
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	switch {
	case connected == 0:
		status = "unavailable"
		httpStatus = http.StatusServiceUnavailable
	case connected < len(controllers):
		// Partial outage still serves the remaining protocols.
		status = "degraded"
	}

	c.JSON(httpStatus, types.HealthResponse{
		Status:      status,
		Controllers: controllers,
		Devices:     len(h.hub.GetDevices()),
		Timestamp:   time.Now(),
	})
}
