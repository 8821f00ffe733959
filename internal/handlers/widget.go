package handlers

import (
	"encoding/json"
	"net/http"

	"widget-sync-backend/internal/metrics"
	"widget-sync-backend/internal/middleware"
	"widget-sync-backend/internal/services"
)

// WidgetHandler serves the pull side of the widget: observers call GetWidget
// whenever a refresh signal (push, websocket, minute tick) tells them to.
type WidgetHandler struct {
	widgetService *services.WidgetService
	userService   *services.UserService
	refresh       *services.RefreshBroadcaster
}

// NewWidgetHandler creates a new widget handler
func NewWidgetHandler(widgetService *services.WidgetService, userService *services.UserService, refresh *services.RefreshBroadcaster) *WidgetHandler {
	return &WidgetHandler{
		widgetService: widgetService,
		userService:   userService,
		refresh:       refresh,
	}
}

// GetWidget handles GET /api/v1/widget?device_id=...&observer_id=...
// Auth is optional here: a missing or bad token renders the not-signed-in
// model instead of failing, mirroring a widget on a logged-out device.
func (h *WidgetHandler) GetWidget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := ""
	if token, err := middleware.BearerToken(r); err == nil {
		if id, err := h.userService.ValidateJWT(token); err == nil {
			userID = id
		}
	}

	deviceID := deviceIDParam(r)
	observerID := r.URL.Query().Get("observer_id")
	if observerID == "" {
		observerID = "widget"
	}

	model := h.widgetService.Render(ctx, userID, deviceID, observerID)
	metrics.RendersTotal.Inc()

	respondJSON(w, http.StatusOK, model)
}

// PushInboundRequest is the opaque push message shape; only the type field
// matters here.
type PushInboundRequest struct {
	Type string `json:"type"`
}

// PushInbound handles POST /api/v1/push/inbound: the hook a device calls
// when the push transport hands it a data message. Only refresh_widget
// messages do anything; everything else is acknowledged and dropped.
func (h *WidgetHandler) PushInbound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PushInboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Type == "refresh_widget" {
		h.refresh.TriggerImmediate(userID)
	}

	w.WriteHeader(http.StatusNoContent)
}
