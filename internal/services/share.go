package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"widget-sync-backend/internal/models"
	"widget-sync-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BlobUploader stores image bytes and returns a shareable URL.
type BlobUploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// PushSender delivers a refresh signal to a device token.
type PushSender interface {
	SendRefresh(token string) error
}

// ShareService handles sending a photo plus message to a partner: upload the
// image, overwrite the partner's widget payload and the shared latest
// message, then nudge the partner's widget to re-fetch.
type ShareService struct {
	users   UserStore
	widgets WidgetStore
	blob    BlobUploader
	push    PushSender // nil when push is not configured
	refresh *RefreshBroadcaster
}

// NewShareService creates a new share service
func NewShareService(users UserStore, widgets WidgetStore, blob BlobUploader, push PushSender, refresh *RefreshBroadcaster) *ShareService {
	return &ShareService{
		users:   users,
		widgets: widgets,
		blob:    blob,
		push:    push,
		refresh: refresh,
	}
}

// Share uploads the image and overwrites the partner's widget payload. Push
// and websocket delivery are best-effort: a partner whose device is
// unreachable still sees the share on their next scheduled refresh.
func (s *ShareService) Share(ctx context.Context, fromID, message string, image []byte) (*models.WidgetPayload, error) {
	self, err := s.users.GetByID(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if self.PartnerUID == nil || *self.PartnerUID == "" {
		return nil, ErrNotPaired
	}
	partnerID := *self.PartnerUID

	key := fmt.Sprintf("shares/%s/%s.jpg", fromID, uuid.New().String())
	imageURL, err := s.blob.Upload(ctx, key, image, "image/jpeg")
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	ts := time.Now().UnixMilli()
	payload := &models.WidgetPayload{
		UserID:    partnerID,
		ImageURL:  imageURL,
		Message:   message,
		Timestamp: ts,
	}
	if err := s.widgets.UpsertPayload(ctx, payload); err != nil {
		return nil, fmt.Errorf("failed to write widget payload: %w", err)
	}

	latest := &models.LatestMessage{
		FromUID:   fromID,
		ToUID:     partnerID,
		ImageURL:  imageURL,
		Message:   message,
		Timestamp: ts,
	}
	if err := s.widgets.SetLatest(ctx, latest); err != nil {
		return nil, fmt.Errorf("failed to write latest message: %w", err)
	}

	s.notifyPartner(ctx, fromID, partnerID)

	return payload, nil
}

// Latest returns the most recently shared message, or nil when nothing has
// been shared yet.
func (s *ShareService) Latest(ctx context.Context) (*models.LatestMessage, error) {
	msg, err := s.widgets.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest message: %w", err)
	}
	return msg, nil
}

// notifyPartner sends the refresh nudges. Failures are logged, never
// returned: the share itself already succeeded.
func (s *ShareService) notifyPartner(ctx context.Context, fromID, partnerID string) {
	if s.push != nil {
		partner, err := s.users.GetByID(ctx, partnerID)
		switch {
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			log.Warn().Err(err).Str("partner_id", partnerID).Msg("Could not load partner for push")
		case err == nil && partner.PushToken != nil && *partner.PushToken != "":
			if err := s.push.SendRefresh(*partner.PushToken); err != nil {
				log.Warn().Err(err).Str("partner_id", partnerID).Msg("Refresh push failed")
			}
		}
	}

	if s.refresh != nil {
		s.refresh.TriggerImmediate(partnerID)
	}

	log.Info().
		Str("from", fromID).
		Str("to", partnerID).
		Msg("Photo shared")
}
