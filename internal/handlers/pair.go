package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"widget-sync-backend/internal/metrics"
	"widget-sync-backend/internal/middleware"
	"widget-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PairHandler handles pairing HTTP requests
type PairHandler struct {
	pairingService *services.PairingService
	wsHub          *services.WSHub
	refresh        *services.RefreshBroadcaster
}

// NewPairHandler creates a new pair handler
func NewPairHandler(pairingService *services.PairingService, wsHub *services.WSHub, refresh *services.RefreshBroadcaster) *PairHandler {
	return &PairHandler{
		pairingService: pairingService,
		wsHub:          wsHub,
		refresh:        refresh,
	}
}

// PairRequest represents the request body for pairing
type PairRequest struct {
	Username    string `json:"username"`
	PartnerCode string `json:"partner_code"`
}

// GetPairing handles GET /api/v1/pair
func (h *PairHandler) GetPairing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	partner, err := h.pairingService.CheckExistingPairing(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to check pairing")
		respondError(w, "Failed to check pairing", http.StatusInternalServerError)
		return
	}

	if partner == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"paired": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"paired":  true,
		"partner": partner,
	})
}

// CreatePairing handles POST /api/v1/pair
func (h *PairHandler) CreatePairing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.pairingService.Pair(ctx, userID, req.Username, req.PartnerCode)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("partner_code", req.PartnerCode).
			Msg("Failed to pair")

		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrEmptyUsername):
			statusCode = http.StatusBadRequest
		case errors.Is(err, services.ErrPartnerNotFound):
			statusCode = http.StatusNotFound
		case errors.Is(err, services.ErrSelfPair):
			statusCode = http.StatusConflict
		}

		respondError(w, err.Error(), statusCode)
		return
	}

	if result.Partner != nil {
		metrics.PairingsTotal.Inc()
		partnerID := result.Partner.PartnerID

		h.wsHub.NotifyPairCreated(userID, partnerID, result.Partner.PartnerUsername)
		h.wsHub.NotifyPairCreated(partnerID, userID, req.Username)

		// both widgets should pick up the new pairing
		h.refresh.TriggerImmediate(userID)
		h.refresh.TriggerImmediate(partnerID)
	}

	respondJSON(w, http.StatusOK, result)
}

// DeletePairing handles DELETE /api/v1/pair
func (h *PairHandler) DeletePairing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	partnerID, err := h.pairingService.Unpair(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrNotPaired) {
			respondError(w, err.Error(), http.StatusConflict)
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to unpair")
		respondError(w, "Failed to unpair", http.StatusInternalServerError)
		return
	}

	metrics.UnpairsTotal.Inc()

	h.wsHub.NotifyPairDeleted(userID)
	h.wsHub.NotifyPairDeleted(partnerID)
	h.refresh.TriggerImmediate(userID)
	h.refresh.TriggerImmediate(partnerID)

	w.WriteHeader(http.StatusNoContent)
}
