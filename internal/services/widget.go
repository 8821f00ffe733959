package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"widget-sync-backend/internal/models"
	"widget-sync-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	timeLayout = "3:04 PM"

	msgNotSignedIn  = "Not signed in"
	msgErrorLoading = "Error loading"
)

// SettingsReader is the slice of the settings store the renderer needs.
type SettingsReader interface {
	Get(ctx context.Context, deviceID string) (*models.DeviceSettings, error)
}

// BlobDownloader fetches shared image bytes by URL.
type BlobDownloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// WidgetService produces the display model an observer renders. Rendering is
// best-effort: any failure degrades to a placeholder model, never an error
// to the caller and never stale data. The next refresh is the retry.
type WidgetService struct {
	widgets  WidgetStore
	settings SettingsReader
	blob     BlobDownloader // nil disables image resolution
	cacheDir string

	mu     sync.Mutex
	cached map[string]string // (userID, observerID) -> imageURL last fetched

	now func() time.Time
}

// NewWidgetService creates a widget renderer caching images under cacheDir.
func NewWidgetService(widgets WidgetStore, settings SettingsReader, blob BlobDownloader, cacheDir string) *WidgetService {
	return &WidgetService{
		widgets:  widgets,
		settings: settings,
		blob:     blob,
		cacheDir: cacheDir,
		cached:   make(map[string]string),
		now:      time.Now,
	}
}

// Render builds the display model for one observer of a user's widget.
// An empty userID produces the not-signed-in model.
func (s *WidgetService) Render(ctx context.Context, userID, deviceID, observerID string) *models.DisplayModel {
	settings, err := s.settings.Get(ctx, deviceID)
	if err != nil {
		log.Warn().Err(err).Str("device_id", deviceID).Msg("Settings unavailable, using defaults")
		settings = &models.DeviceSettings{
			TimezoneMine:  defaultTimezoneMine,
			TimezoneOther: defaultTimezoneOther,
			KikayMode:     true,
		}
	}

	partnerLabel := "Her"
	if settings.KikayMode {
		partnerLabel = "Him"
	}

	model := &models.DisplayModel{
		SelfLabel:    "Me",
		PartnerLabel: partnerLabel,
	}

	// Timezone identifiers are not validated at write time; a bad one fails
	// here and the whole refresh degrades.
	zoneMine, err := time.LoadLocation(settings.TimezoneMine)
	if err != nil {
		log.Warn().Err(err).Str("zone", settings.TimezoneMine).Msg("Bad timezone setting")
		model.Message = msgErrorLoading
		return model
	}
	zoneOther, err := time.LoadLocation(settings.TimezoneOther)
	if err != nil {
		log.Warn().Err(err).Str("zone", settings.TimezoneOther).Msg("Bad timezone setting")
		model.Message = msgErrorLoading
		return model
	}

	now := s.now()
	model.SelfTime = now.In(zoneMine).Format(timeLayout)
	model.PartnerTime = now.In(zoneOther).Format(timeLayout)

	if userID == "" {
		model.Message = msgNotSignedIn
		return model
	}

	payload, err := s.widgets.GetPayload(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// nothing shared yet
			return model
		}
		log.Warn().Err(err).Str("user_id", userID).Msg("Widget payload read failed")
		model.Message = msgErrorLoading
		return model
	}

	model.Message = payload.Message

	if payload.ImageURL != "" && s.blob != nil {
		if path, err := s.resolveImage(ctx, userID, observerID, payload.ImageURL); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Image fetch failed, showing placeholder")
		} else {
			model.ImagePath = path
		}
	}

	return model
}

// resolveImage downloads the shared image once per (user, observer) and
// reuses the cached file until the URL changes.
func (s *WidgetService) resolveImage(ctx context.Context, userID, observerID, imageURL string) (string, error) {
	key := userID + "|" + observerID
	path := filepath.Join(s.cacheDir, fmt.Sprintf("widget_%s_%s.jpg", userID, observerID))

	s.mu.Lock()
	cachedURL := s.cached[key]
	s.mu.Unlock()

	if cachedURL == imageURL {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	data, err := s.blob.Download(ctx, imageURL)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to cache image: %w", err)
	}

	s.mu.Lock()
	s.cached[key] = imageURL
	s.mu.Unlock()

	return path, nil
}
