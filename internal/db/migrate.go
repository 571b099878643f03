package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                        UUID PRIMARY KEY,
	name                      TEXT NOT NULL,
	email                     TEXT NOT NULL,
	password_hash             TEXT NOT NULL,
	role                      TEXT NOT NULL DEFAULT 'user',
	avatar_public_id          TEXT NOT NULL DEFAULT '',
	avatar_url                TEXT NOT NULL DEFAULT '',
	reset_password_token_hash TEXT NULL,
	reset_password_expire     TIMESTAMPTZ NULL,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT users_reset_pair CHECK ((reset_password_token_hash IS NULL) = (reset_password_expire IS NULL))
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email);
CREATE INDEX IF NOT EXISTS users_reset_token_idx ON users (reset_password_token_hash)
	WHERE reset_password_token_hash IS NOT NULL;
`

// Migrate applies the users schema. Safe to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
