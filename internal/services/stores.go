package services

import (
	"context"

	"widget-sync-backend/internal/models"
	"widget-sync-backend/internal/repository"
)

// UserStore is the account storage surface the services need.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByCode(ctx context.Context, code string) (*models.User, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	UpdateUsername(ctx context.Context, userID, username string) error
	SetPartner(ctx context.Context, userID, partnerID string) error
	ClearPartner(ctx context.Context, userID string) error
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// WidgetStore is the shared payload storage surface.
type WidgetStore interface {
	UpsertPayload(ctx context.Context, payload *models.WidgetPayload) error
	GetPayload(ctx context.Context, userID string) (*models.WidgetPayload, error)
	SetLatest(ctx context.Context, msg *models.LatestMessage) error
	GetLatest(ctx context.Context) (*models.LatestMessage, error)
}

var (
	_ UserStore   = (*repository.UserRepository)(nil)
	_ WidgetStore = (*repository.WidgetRepository)(nil)
)
