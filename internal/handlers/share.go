package handlers

import (
	"errors"
	"io"
	"net/http"

	"widget-sync-backend/internal/metrics"
	"widget-sync-backend/internal/middleware"
	"widget-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// shares are phone photos, keep the limit generous
const maxShareBytes = 15 << 20

// ShareHandler handles photo share HTTP requests
type ShareHandler struct {
	shareService *services.ShareService
}

// NewShareHandler creates a new share handler
func NewShareHandler(shareService *services.ShareService) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
	}
}

// Share handles POST /api/v1/share (multipart form: image, message)
func (h *ShareHandler) Share(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := r.ParseMultipartForm(maxShareBytes); err != nil {
		respondError(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, "image is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxShareBytes))
	if err != nil {
		respondError(w, "Failed to read image", http.StatusBadRequest)
		return
	}
	if len(image) == 0 {
		respondError(w, "image is empty", http.StatusBadRequest)
		return
	}

	message := r.FormValue("message")

	payload, err := h.shareService.Share(ctx, userID, message, image)
	if err != nil {
		if errors.Is(err, services.ErrNotPaired) {
			respondError(w, err.Error(), http.StatusConflict)
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to share photo")
		respondError(w, "Failed to share photo", http.StatusInternalServerError)
		return
	}

	metrics.SharesTotal.Inc()
	respondJSON(w, http.StatusOK, payload)
}

// Latest handles GET /api/v1/messages/latest
func (h *ShareHandler) Latest(w http.ResponseWriter, r *http.Request) {
	msg, err := h.shareService.Latest(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load latest message")
		respondError(w, "Failed to load latest message", http.StatusInternalServerError)
		return
	}
	if msg == nil {
		respondError(w, "no messages yet", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}
