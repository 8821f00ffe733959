package handlers

import (
	"net/http"

	"widget-sync-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles observer WebSocket connections. Connecting arms
// the per-user minute schedule; disconnecting cancels it, so only users with
// a live observer pay for periodic refreshes.
type WebSocketHandler struct {
	hub            *services.WSHub
	userService    *services.UserService
	pairingService *services.PairingService
	refresh        *services.RefreshBroadcaster
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	pairingService *services.PairingService,
	refresh *services.RefreshBroadcaster,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		userService:    userService,
		pairingService: pairingService,
		refresh:        refresh,
	}
}

// HandleWebSocket handles GET /ws?token=...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(userID, conn)
	h.refresh.SchedulePeriodic(userID)
	defer func() {
		// A reconnect replaces this connection in the hub before this
		// teardown runs; only the connection still registered tears down
		// the schedule and announces the user offline.
		if h.hub.Unregister(userID, conn) {
			h.refresh.CancelPeriodic(userID)
			h.notifyPartner(r, userID, false)
		}
	}()

	h.notifyPartner(r, userID, true)

	// an initial refresh so a freshly connected observer renders promptly
	h.refresh.TriggerImmediate(userID)

	// Observers are pull-based; the read loop only keeps the connection
	// alive and detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			return
		}
	}
}

// notifyPartner tells the paired account this observer went on or offline.
// On connect the new observer also learns whether the partner is already
// connected.
func (h *WebSocketHandler) notifyPartner(r *http.Request, userID string, online bool) {
	partner, err := h.pairingService.CheckExistingPairing(r.Context(), userID)
	if err != nil || partner == nil {
		return
	}
	h.hub.NotifyPartnerStatus(partner.PartnerID, online)
	if online {
		h.hub.NotifyPartnerStatus(userID, h.hub.IsOnline(partner.PartnerID))
	}
}
