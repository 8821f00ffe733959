package handlers

import (
	"encoding/json"
	"net/http"

	"widget-sync-backend/internal/middleware"
	"widget-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// SettingsHandler handles device settings HTTP requests
type SettingsHandler struct {
	settings *services.SettingsStore
	refresh  *services.RefreshBroadcaster
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *services.SettingsStore, refresh *services.RefreshBroadcaster) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		refresh:  refresh,
	}
}

// UpdateSettingsRequest carries the fields to change; absent fields are left
// untouched. Timezone identifiers are stored without validation, matching
// the widget's resolve-at-display behavior.
type UpdateSettingsRequest struct {
	TimezoneMine  *string `json:"timezone_mine,omitempty"`
	TimezoneOther *string `json:"timezone_other,omitempty"`
	KikayMode     *bool   `json:"kikay_mode,omitempty"`
}

// GetSettings handles GET /api/v1/settings?device_id=...
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := deviceIDParam(r)

	settings, err := h.settings.Get(ctx, deviceID)
	if err != nil {
		log.Error().Err(err).Str("device_id", deviceID).Msg("Failed to get settings")
		respondError(w, "Failed to get settings", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /api/v1/settings?device_id=...
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	deviceID := deviceIDParam(r)

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// each field is an independent durable write
	if req.TimezoneMine != nil {
		if err := h.settings.SetTimezoneMine(ctx, deviceID, *req.TimezoneMine); err != nil {
			log.Error().Err(err).Str("device_id", deviceID).Msg("Failed to set timezone")
			respondError(w, "Failed to save settings", http.StatusInternalServerError)
			return
		}
	}
	if req.TimezoneOther != nil {
		if err := h.settings.SetTimezoneOther(ctx, deviceID, *req.TimezoneOther); err != nil {
			log.Error().Err(err).Str("device_id", deviceID).Msg("Failed to set timezone")
			respondError(w, "Failed to save settings", http.StatusInternalServerError)
			return
		}
	}
	if req.KikayMode != nil {
		if err := h.settings.SetKikayMode(ctx, deviceID, *req.KikayMode); err != nil {
			log.Error().Err(err).Str("device_id", deviceID).Msg("Failed to set kikay mode")
			respondError(w, "Failed to save settings", http.StatusInternalServerError)
			return
		}
	}

	// saved settings should show up on the widget right away
	h.refresh.TriggerImmediate(userID)

	settings, err := h.settings.Get(ctx, deviceID)
	if err != nil {
		log.Error().Err(err).Str("device_id", deviceID).Msg("Failed to reload settings")
		respondError(w, "Failed to get settings", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func deviceIDParam(r *http.Request) string {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		deviceID = "default"
	}
	return deviceID
}
