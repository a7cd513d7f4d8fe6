package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/urmzd/homai-hub/pkg/api/types"
	"github.com/urmzd/homai-hub/pkg/config"
	"github.com/urmzd/homai-hub/pkg/db"
)

// Store is the profile database the settings endpoints edit.
type Store interface {
	ActiveConfig(ctx context.Context) (*db.Config, error)
	Profiles() db.ProfileStore
	Settings() db.SettingsStore
	APIServers() db.APIServerStore
}

var _ Store = (*db.DB)(nil)

// SettingsHandler handles profile and settings endpoints
type SettingsHandler struct {
	store Store
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(store Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "invalid_request", Message: msg})
}

func profileInfo(p *db.Profile) types.ProfileInfo {
	return types.ProfileInfo{
		ID:        p.ID,
		Name:      p.Name,
		Timezone:  p.Timezone,
		Active:    p.IsActive,
		CreatedAt: p.CreatedAt,
	}
}

// ListProfiles handles GET /profiles
// @Summary      List profiles
// @Tags         settings
// @Produce      json
// @Success      200  {object}  types.ListProfilesResponse
// @Router       /profiles [get]
func (h *SettingsHandler) ListProfiles(c *gin.Context) {
	profiles, err := h.store.Profiles().List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]types.ProfileInfo, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, profileInfo(p))
	}
	c.JSON(http.StatusOK, types.ListProfilesResponse{Profiles: out, Count: len(out)})
}

// CreateProfile handles POST /profiles
// @Summary      Create a profile
// @Description  Creates an inactive profile. Its settings start at the defaults.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        request  body      types.CreateProfileRequest  true  "Profile"
// @Success      201      {object}  types.ProfileResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      409      {object}  types.ErrorResponse  "Name already taken"
// @Router       /profiles [post]
func (h *SettingsHandler) CreateProfile(c *gin.Context) {
	var req types.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			badRequest(c, fmt.Sprintf("unknown timezone %q", req.Timezone))
			return
		}
	}

	ctx := c.Request.Context()
	profiles := h.store.Profiles()
	if _, err := profiles.GetByName(ctx, req.Name); err == nil {
		c.JSON(http.StatusConflict, types.ErrorResponse{
			Error:   "conflict",
			Message: fmt.Sprintf("profile %q already exists", req.Name),
		})
		return
	} else if !errors.Is(err, db.ErrProfileNotFound) {
		writeError(c, err)
		return
	}

	p := &db.Profile{Name: req.Name, Timezone: req.Timezone}
	if err := profiles.Create(ctx, p); err != nil {
		writeError(c, err)
		return
	}
	created, err := profiles.Get(ctx, p.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	log.Info().Str("profile", created.Name).Msg("Profile created")
	c.JSON(http.StatusCreated, types.ProfileResponse{Profile: profileInfo(created)})
}

// ActivateProfile handles POST /profiles/:id/activate
// @Summary      Activate a profile
// @Description  Makes the profile the one loaded at the next start
// @Tags         settings
// @Produce      json
// @Param        id   path      int  true  "Profile id"
// @Success      200  {object}  types.ProfileResponse
// @Failure      404  {object}  types.ErrorResponse  "Profile not found"
// @Router       /profiles/{id}/activate [post]
func (h *SettingsHandler) ActivateProfile(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "profile id must be an integer")
		return
	}

	ctx := c.Request.Context()
	if err := h.store.Profiles().SetActive(ctx, id); err != nil {
		writeError(c, err)
		return
	}
	p, err := h.store.Profiles().Get(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	log.Info().Str("profile", p.Name).Msg("Profile activated")
	c.JSON(http.StatusOK, types.ProfileResponse{Profile: profileInfo(p), RestartRequired: true})
}

// GetSettings handles GET /settings
// @Summary      Get settings
// @Description  Returns the stored settings of the active profile
// @Tags         settings
// @Produce      json
// @Success      200  {object}  types.SettingsResponse
// @Router       /settings [get]
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	stored, err := h.store.ActiveConfig(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsResponse(stored, false))
}

// UpdateSettings handles PATCH /settings
// @Summary      Update settings
// @Description  Validates and stores settings of the active profile. A null value resets a key to its default. Changes apply on restart.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        request  body      types.UpdateSettingsRequest  true  "Settings to change"
// @Success      200      {object}  types.SettingsResponse
// @Failure      400      {object}  types.ErrorResponse  "Unknown key or invalid value"
// @Router       /settings [patch]
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req types.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil || (len(req.Settings) == 0 && req.APIAddress == nil) {
		badRequest(c, "settings or api_address is required")
		return
	}

	ctx := c.Request.Context()
	stored, err := h.store.ActiveConfig(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	merged := make(map[string]string, len(stored.Settings)+1)
	for k, v := range stored.Settings {
		merged[k] = v
	}
	for k, v := range req.Settings {
		def, ok := db.DefaultSettings[k]
		if !ok {
			badRequest(c, fmt.Sprintf("unknown setting %q", k))
			return
		}
		if v == nil {
			merged[k] = def
		} else {
			merged[k] = *v
		}
	}
	merged["api.address"] = stored.APIAddress()
	if req.APIAddress != nil {
		merged["api.address"] = *req.APIAddress
	}
	if _, err := config.FromSettings(merged); err != nil {
		badRequest(c, err.Error())
		return
	}

	profileID := stored.Profile.ID
	settings := h.store.Settings()
	for k, v := range req.Settings {
		if v == nil {
			err = settings.Delete(ctx, profileID, k)
			if errors.Is(err, db.ErrSettingNotFound) {
				err = nil
			}
		} else {
			err = settings.Set(ctx, profileID, k, *v)
		}
		if err != nil {
			writeError(c, err)
			return
		}
	}
	if req.APIAddress != nil {
		host, portStr, _ := net.SplitHostPort(*req.APIAddress)
		port, _ := strconv.Atoi(portStr)
		if host == "" {
			host = "0.0.0.0"
		}
		if err := h.store.APIServers().Upsert(ctx, &db.APIServer{ProfileID: profileID, Host: host, Port: port}); err != nil {
			writeError(c, err)
			return
		}
	}

	if stored, err = h.store.ActiveConfig(ctx); err != nil {
		writeError(c, err)
		return
	}
	keys := make([]string, 0, len(req.Settings))
	for k := range req.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	log.Info().Str("profile", stored.Profile.Name).Strs("keys", keys).Msg("Settings updated")
	c.JSON(http.StatusOK, settingsResponse(stored, true))
}

func settingsResponse(stored *db.Config, restart bool) types.SettingsResponse {
	return types.SettingsResponse{
		Profile:         stored.Profile.Name,
		APIAddress:      stored.APIAddress(),
		Settings:        stored.Settings,
		RestartRequired: restart,
	}
}
