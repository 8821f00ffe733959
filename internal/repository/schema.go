package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied on startup so the tables exist. Widget payloads are
// keyed by recipient; messages_latest holds the single most recent share.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id          TEXT PRIMARY KEY,
    code        TEXT NOT NULL UNIQUE,
    username    TEXT,
    partner_uid TEXT,
    push_token  TEXT,
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS widget_data (
    user_id   TEXT PRIMARY KEY,
    image_url TEXT NOT NULL,
    message   TEXT NOT NULL,
    ts        BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages_latest (
    id        INT PRIMARY KEY,
    from_uid  TEXT NOT NULL,
    to_uid    TEXT NOT NULL,
    image_url TEXT NOT NULL,
    message   TEXT NOT NULL,
    ts        BIGINT NOT NULL
);
`

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
