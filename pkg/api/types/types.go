package types

import (
	"time"

	"github.com/urmzd/homai-hub/pkg/device"
	"github.com/urmzd/homai-hub/pkg/integration"
)

// --- Request DTOs ---

// UpdateDeviceRequest is the request body for PATCH /devices/:id.
// Omitted fields are left unchanged; an empty room clears the assignment.
type UpdateDeviceRequest struct {
	Name *string `json:"name"`
	Room *string `json:"room"`
}

// CommandRequest is the request body for POST /devices/:id/commands
type CommandRequest struct {
	Type   device.CommandType `json:"type" binding:"required"`
	Params map[string]any     `json:"params,omitempty"`
}

// PermitJoinRequest is the request body for POST /discovery/permit-join
type PermitJoinRequest struct {
	Protocol        string `json:"protocol" binding:"required"`
	DurationSeconds int    `json:"duration_seconds"`
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status      string                         `json:"status"`
	Controllers []integration.ControllerStatus `json:"controllers"`
	Devices     int                            `json:"devices"`
	Timestamp   time.Time                      `json:"timestamp"`
}

// ListDevicesResponse is returned from GET /devices
type ListDevicesResponse struct {
	Devices []device.Device `json:"devices"`
	Count   int             `json:"count"`
}

// DeviceResponse is returned from GET/PATCH /devices/:id
type DeviceResponse struct {
	Device device.Device `json:"device"`
}

// CommandResponse is returned from POST /devices/:id/commands
type CommandResponse struct {
	Success bool          `json:"success"`
	Device  device.Device `json:"device"`
	State   device.State  `json:"state"`
}

// DiscoveryResponse is returned from POST /discovery. Errors lists the
// controllers that failed or timed out; their devices are still merged.
type DiscoveryResponse struct {
	Devices  []device.Device `json:"devices"`
	Count    int             `json:"count"`
	Errors   []string        `json:"errors,omitempty"`
	Duration string          `json:"duration"`
}

// PermitJoinResponse is returned from POST /discovery/permit-join
type PermitJoinResponse struct {
	Status          string    `json:"status"`
	Protocol        string    `json:"protocol"`
	ExpiresAt       time.Time `json:"expires_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

// --- Profile and settings DTOs ---

// CreateProfileRequest is the request body for POST /profiles
type CreateProfileRequest struct {
	Name     string `json:"name" binding:"required"`
	Timezone string `json:"timezone"`
}

// ProfileInfo is a stored configuration profile
type ProfileInfo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ListProfilesResponse is returned from GET /profiles
type ListProfilesResponse struct {
	Profiles []ProfileInfo `json:"profiles"`
	Count    int           `json:"count"`
}

// ProfileResponse is returned when a profile is created or activated.
// Changes to the active profile take effect on restart.
type ProfileResponse struct {
	Profile         ProfileInfo `json:"profile"`
	RestartRequired bool        `json:"restart_required"`
}

// UpdateSettingsRequest is the request body for PATCH /settings.
// A null value resets the key to its default.
type UpdateSettingsRequest struct {
	Settings   map[string]*string `json:"settings"`
	APIAddress *string            `json:"api_address"`
}

// SettingsResponse is returned from GET/PATCH /settings
type SettingsResponse struct {
	Profile         string            `json:"profile"`
	APIAddress      string            `json:"api_address"`
	Settings        map[string]string `json:"settings"`
	RestartRequired bool              `json:"restart_required,omitempty"`
}
