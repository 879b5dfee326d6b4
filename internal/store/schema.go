package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS participants (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS photos (
	id              TEXT PRIMARY KEY,
	participant_id  TEXT NOT NULL REFERENCES participants(id) ON DELETE CASCADE,
	position        INT NOT NULL,
	image_data      TEXT NOT NULL,
	taken_at        TIMESTAMPTZ NOT NULL,
	UNIQUE (participant_id, position)
);

CREATE INDEX IF NOT EXISTS idx_photos_participant ON photos(participant_id);

CREATE TABLE IF NOT EXISTS quotes (
	id          BIGSERIAL PRIMARY KEY,
	text        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS settings (
	id                     TEXT PRIMARY KEY,
	accepting_submissions  BOOLEAN NOT NULL DEFAULT TRUE,
	closed_at              TIMESTAMPTZ,
	yearbook_generated     BOOLEAN NOT NULL DEFAULT FALSE,
	yearbook_generated_at  TIMESTAMPTZ
);
`

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
