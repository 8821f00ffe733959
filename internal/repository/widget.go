package repository

import (
	"context"
	"fmt"

	"widget-sync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WidgetRepository handles database operations for widget payloads and the
// latest shared message
type WidgetRepository struct {
	db *pgxpool.Pool
}

// NewWidgetRepository creates a new widget repository
func NewWidgetRepository(db *pgxpool.Pool) *WidgetRepository {
	return &WidgetRepository{db: db}
}

// UpsertPayload overwrites the widget payload for a recipient. Every share
// replaces the previous one; payloads are never deleted.
func (r *WidgetRepository) UpsertPayload(ctx context.Context, payload *models.WidgetPayload) error {
	query := `
		INSERT INTO widget_data (user_id, image_url, message, ts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET image_url = EXCLUDED.image_url, message = EXCLUDED.message, ts = EXCLUDED.ts
	`
	_, err := r.db.Exec(ctx, query,
		payload.UserID, payload.ImageURL, payload.Message, payload.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert widget payload: %w", err)
	}
	return nil
}

// GetPayload retrieves the widget payload for a recipient
func (r *WidgetRepository) GetPayload(ctx context.Context, userID string) (*models.WidgetPayload, error) {
	query := `
		SELECT user_id, image_url, message, ts
		FROM widget_data
		WHERE user_id = $1
	`
	var payload models.WidgetPayload
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&payload.UserID, &payload.ImageURL, &payload.Message, &payload.Timestamp,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("widget payload for %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get widget payload: %w", err)
	}
	return &payload, nil
}

// SetLatest overwrites the single latest-message record shared by the pair
func (r *WidgetRepository) SetLatest(ctx context.Context, msg *models.LatestMessage) error {
	query := `
		INSERT INTO messages_latest (id, from_uid, to_uid, image_url, message, ts)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET from_uid = EXCLUDED.from_uid, to_uid = EXCLUDED.to_uid,
		    image_url = EXCLUDED.image_url, message = EXCLUDED.message, ts = EXCLUDED.ts
	`
	_, err := r.db.Exec(ctx, query, msg.FromUID, msg.ToUID, msg.ImageURL, msg.Message, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to set latest message: %w", err)
	}
	return nil
}

// GetLatest retrieves the latest shared message
func (r *WidgetRepository) GetLatest(ctx context.Context) (*models.LatestMessage, error) {
	query := `
		SELECT from_uid, to_uid, image_url, message, ts
		FROM messages_latest
		WHERE id = 1
	`
	var msg models.LatestMessage
	err := r.db.QueryRow(ctx, query).Scan(
		&msg.FromUID, &msg.ToUID, &msg.ImageURL, &msg.Message, &msg.Timestamp,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("latest message: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest message: %w", err)
	}
	return &msg, nil
}
