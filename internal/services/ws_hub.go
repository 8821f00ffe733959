package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Online  *bool       `json:"online,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ObserverConn is the subset of *websocket.Conn the hub uses.
type ObserverConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

var _ ObserverConn = (*websocket.Conn)(nil)

// WSHub manages observer WebSocket connections, one per user. It carries
// invalidation signals only: observers re-fetch the display model over HTTP
// when they receive a refresh_widget message.
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]ObserverConn
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]ObserverConn),
	}
}

// Register registers a new WebSocket connection for a user, closing any
// previous one.
func (h *WSHub) Register(userID string, conn ObserverConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, exists := h.connections[userID]; exists {
		existing.Close()
	}
	h.connections[userID] = conn

	log.Info().Str("user_id", userID).Msg("Observer connected")
}

// Unregister removes a user's connection, but only when conn is still the
// registered one. The handler for a connection that was replaced by a
// reconnect still runs its teardown after Register closed it; keying the
// removal on the connection keeps that stale teardown from evicting the new
// connection. Returns whether conn was removed.
func (h *WSHub) Unregister(userID string, conn ObserverConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, exists := h.connections[userID]
	if !exists || current != conn {
		return false
	}
	current.Close()
	delete(h.connections, userID)
	log.Info().Str("user_id", userID).Msg("Observer disconnected")
	return true
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	conn, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.Unregister(userID, conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a user has a connected observer
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// SendRefresh tells a user's observer to re-fetch and re-render. Failures
// are fine: the observer catches up on its next minute tick.
func (h *WSHub) SendRefresh(userID string) {
	if err := h.SendToUser(userID, WSMessage{Type: refreshPushType}); err != nil {
		log.Debug().Str("user_id", userID).Msg("No observer for refresh signal")
	}
}

// NotifyPairCreated tells a user that a pair now exists.
func (h *WSHub) NotifyPairCreated(userID, partnerID, partnerUsername string) {
	msg := WSMessage{
		Type: "pair_created",
		Data: map[string]interface{}{
			"partner_id":       partnerID,
			"partner_username": partnerUsername,
		},
	}
	if err := h.SendToUser(userID, msg); err != nil {
		log.Debug().Str("user_id", userID).Msg("Pair notification skipped, user offline")
	}
}

// NotifyPairDeleted tells a user their pair was dissolved.
func (h *WSHub) NotifyPairDeleted(userID string) {
	if err := h.SendToUser(userID, WSMessage{Type: "pair_deleted"}); err != nil {
		log.Debug().Str("user_id", userID).Msg("Unpair notification skipped, user offline")
	}
}

// NotifyPartnerStatus tells a user their partner went online or offline.
func (h *WSHub) NotifyPartnerStatus(partnerID string, online bool) {
	if partnerID == "" {
		return
	}
	msg := WSMessage{
		Type:   "partner_status",
		Online: &online,
	}
	if err := h.SendToUser(partnerID, msg); err != nil {
		log.Debug().Str("user_id", partnerID).Msg("Status notification skipped, partner offline")
	}
}
