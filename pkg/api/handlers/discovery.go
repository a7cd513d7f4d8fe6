package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homai-hub/pkg/api/types"
)

const (
	defaultJoinSeconds = 120
	maxJoinSeconds     = 600
	heartbeatInterval  = 30 * time.Second
)

// DiscoveryHandler handles discovery, pairing and the event stream
type DiscoveryHandler struct {
	hub Hub
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(hub Hub) *DiscoveryHandler {
	return &DiscoveryHandler{hub: hub}
}

// Discover handles POST /discovery
// @Summary      Run a discovery pass
// @Description  Runs every initialized controller's discovery in parallel and merges the results into the registry.
// @Description  Controllers that fail or time out are listed in errors; the others' devices are still returned.
// @Tags         discovery
// @Produce      json
// @Success      200  {object}  types.DiscoveryResponse
// @Failure      500  {object}  types.ErrorResponse  "Manager is shut down"
// @Router       /discovery [post]
func (h *DiscoveryHandler) Discover(c *gin.Context) {
	start := time.Now()
	devices, err := h.hub.DiscoverDevices(c.Request.Context())
	if devices == nil && err != nil {
		writeError(c, err)
		return
	}

	resp := types.DiscoveryResponse{
		Devices:  devices,
		Count:    len(devices),
		Errors:   splitErrors(err),
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	c.JSON(http.StatusOK, resp)
}

// PermitJoin handles POST /discovery/permit-join
// @Summary      Open a mesh network for pairing
// @Description  Lets new devices join the named mesh controller's network for a limited time
// @Tags         discovery
// @Accept       json
// @Produce      json
// @Param        request  body      types.PermitJoinRequest  true  "Protocol and duration (default 120 seconds, max 600)"
// @Success      200      {object}  types.PermitJoinResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid duration"
// @Failure      501      {object}  types.ErrorResponse  "Protocol does not support pairing"
// @Failure      503      {object}  types.ErrorResponse  "Controller unavailable"
// @Router       /discovery/permit-join [post]
func (h *DiscoveryHandler) PermitJoin(c *gin.Context) {
	var req types.PermitJoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_request",
			Message: "protocol is required",
		})
		return
	}

	if req.DurationSeconds <= 0 {
		req.DurationSeconds = defaultJoinSeconds
	}
	if req.DurationSeconds > maxJoinSeconds {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error:   "invalid_duration",
			Message: "Duration cannot exceed 600 seconds",
		})
		return
	}

	duration := time.Duration(req.DurationSeconds) * time.Second
	if err := h.hub.PermitJoin(c.Request.Context(), req.Protocol, duration); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.PermitJoinResponse{
		Status:          "pairing_enabled",
		Protocol:        req.Protocol,
		ExpiresAt:       time.Now().Add(duration),
		DurationSeconds: req.DurationSeconds,
	})
}

// Events handles GET /events (SSE stream)
// @Summary      Subscribe to registry events
// @Description  Server-Sent Events stream of device discovery, update, removal and state change events
// @Tags         discovery
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /events [get]
func (h *DiscoveryHandler) Events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	eventChan := h.hub.Subscribe()
	defer h.hub.Unsubscribe(eventChan)

	sendSSEEvent(c.Writer, "connected", map[string]any{
		"timestamp": time.Now(),
		"message":   "Connected to hub event stream",
	})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			sendSSEEvent(c.Writer, string(event.Type), event)
			c.Writer.Flush()

		case <-ticker.C:
			sendSSEEvent(c.Writer, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			c.Writer.Flush()
		}
	}
}

// sendSSEEvent writes an SSE event to the response
func sendSSEEvent(w io.Writer, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: "+string(jsonData)+"\n\n")
}

// splitErrors flattens a joined error into one message per controller.
func splitErrors(err error) []string {
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range joined.Unwrap() {
		out = append(out, e.Error())
	}
	return out
}
