package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"widget-sync-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettings struct {
	settings *models.DeviceSettings
	err      error
}

func (f *fakeSettings) Get(context.Context, string) (*models.DeviceSettings, error) {
	return f.settings, f.err
}

func testSettings() *fakeSettings {
	return &fakeSettings{settings: &models.DeviceSettings{
		TimezoneMine:  "UTC",
		TimezoneOther: "America/New_York",
		KikayMode:     true,
	}}
}

func fixedNoon() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestWidgetRender(t *testing.T) {
	ctx := context.Background()

	t.Run("renders times, labels and shared message", func(t *testing.T) {
		widgets := newMemWidgetStore()
		require.NoError(t, widgets.UpsertPayload(ctx, &models.WidgetPayload{
			UserID:  "uid-1",
			Message: "miss you",
		}))

		svc := NewWidgetService(widgets, testSettings(), nil, t.TempDir())
		svc.now = fixedNoon

		model := svc.Render(ctx, "uid-1", "device-1", "widget")
		assert.Equal(t, "Me", model.SelfLabel)
		assert.Equal(t, "Him", model.PartnerLabel)
		assert.Equal(t, "12:00 PM", model.SelfTime)
		// New York is UTC-4 in June
		assert.Equal(t, "8:00 AM", model.PartnerTime)
		assert.Equal(t, "miss you", model.Message)
		assert.Empty(t, model.ImagePath)
	})

	t.Run("kikay mode off switches the partner label", func(t *testing.T) {
		settings := testSettings()
		settings.settings.KikayMode = false

		svc := NewWidgetService(newMemWidgetStore(), settings, nil, t.TempDir())
		svc.now = fixedNoon

		model := svc.Render(ctx, "uid-1", "device-1", "widget")
		assert.Equal(t, "Her", model.PartnerLabel)
	})

	t.Run("empty user renders the not-signed-in model", func(t *testing.T) {
		svc := NewWidgetService(newMemWidgetStore(), testSettings(), nil, t.TempDir())
		svc.now = fixedNoon

		model := svc.Render(ctx, "", "device-1", "widget")
		assert.Equal(t, "Not signed in", model.Message)
		assert.Equal(t, "12:00 PM", model.SelfTime)
		assert.Empty(t, model.ImagePath)
	})

	t.Run("no payload yet renders an empty message", func(t *testing.T) {
		svc := NewWidgetService(newMemWidgetStore(), testSettings(), nil, t.TempDir())
		svc.now = fixedNoon

		model := svc.Render(ctx, "uid-1", "device-1", "widget")
		assert.Empty(t, model.Message)
		assert.Equal(t, "12:00 PM", model.SelfTime)
	})

	t.Run("store failure degrades to the error placeholder", func(t *testing.T) {
		widgets := newMemWidgetStore()
		widgets.failReads = true

		svc := NewWidgetService(widgets, testSettings(), nil, t.TempDir())
		svc.now = fixedNoon

		model := svc.Render(ctx, "uid-1", "device-1", "widget")
		assert.Equal(t, "Error loading", model.Message)
		assert.Empty(t, model.ImagePath)
	})

	t.Run("bad timezone degrades to the error placeholder", func(t *testing.T) {
		settings := testSettings()
		settings.settings.TimezoneMine = "Not/AZone"

		svc := NewWidgetService(newMemWidgetStore(), settings, nil, t.TempDir())
		svc.now = fixedNoon

		model := svc.Render(ctx, "uid-1", "device-1", "widget")
		assert.Equal(t, "Error loading", model.Message)
		assert.Empty(t, model.SelfTime)
	})

	t.Run("settings failure falls back to defaults", func(t *testing.T) {
		svc := NewWidgetService(newMemWidgetStore(), &fakeSettings{err: errors.New("db closed")}, nil, t.TempDir())
		svc.now = fixedNoon

		model := svc.Render(ctx, "uid-1", "device-1", "widget")
		assert.Equal(t, "Him", model.PartnerLabel)
		assert.NotEmpty(t, model.SelfTime)
	})

	t.Run("image is fetched once and re-fetched on URL change", func(t *testing.T) {
		widgets := newMemWidgetStore()
		require.NoError(t, widgets.UpsertPayload(ctx, &models.WidgetPayload{
			UserID:   "uid-1",
			ImageURL: "https://blobs.test/a.jpg",
			Message:  "hi",
		}))
		blob := newFakeDownloader([]byte("jpeg-bytes"))

		svc := NewWidgetService(widgets, testSettings(), blob, t.TempDir())
		svc.now = fixedNoon

		first := svc.Render(ctx, "uid-1", "device-1", "widget")
		require.NotEmpty(t, first.ImagePath)
		second := svc.Render(ctx, "uid-1", "device-1", "widget")
		assert.Equal(t, first.ImagePath, second.ImagePath)
		assert.Equal(t, 1, blob.fetches["https://blobs.test/a.jpg"])

		require.NoError(t, widgets.UpsertPayload(ctx, &models.WidgetPayload{
			UserID:   "uid-1",
			ImageURL: "https://blobs.test/b.jpg",
			Message:  "hi again",
		}))
		third := svc.Render(ctx, "uid-1", "device-1", "widget")
		assert.NotEmpty(t, third.ImagePath)
		assert.Equal(t, 1, blob.fetches["https://blobs.test/b.jpg"])
	})

	t.Run("image download failure keeps the message, drops the image", func(t *testing.T) {
		widgets := newMemWidgetStore()
		require.NoError(t, widgets.UpsertPayload(ctx, &models.WidgetPayload{
			UserID:   "uid-1",
			ImageURL: "https://blobs.test/a.jpg",
			Message:  "hello",
		}))
		blob := newFakeDownloader(nil)
		blob.err = errors.New("network down")

		svc := NewWidgetService(widgets, testSettings(), blob, t.TempDir())
		svc.now = fixedNoon

		model := svc.Render(ctx, "uid-1", "device-1", "widget")
		assert.Equal(t, "hello", model.Message)
		assert.Empty(t, model.ImagePath)
	})

	t.Run("observers cache independently", func(t *testing.T) {
		widgets := newMemWidgetStore()
		require.NoError(t, widgets.UpsertPayload(ctx, &models.WidgetPayload{
			UserID:   "uid-1",
			ImageURL: "https://blobs.test/a.jpg",
		}))
		blob := newFakeDownloader([]byte("jpeg-bytes"))

		svc := NewWidgetService(widgets, testSettings(), blob, t.TempDir())
		svc.now = fixedNoon

		one := svc.Render(ctx, "uid-1", "device-1", "widget-1")
		two := svc.Render(ctx, "uid-1", "device-1", "widget-2")
		assert.NotEqual(t, one.ImagePath, two.ImagePath)
		assert.Equal(t, 2, blob.fetches["https://blobs.test/a.jpg"])
	})
}
