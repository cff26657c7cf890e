package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied at startup; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		seq         BIGSERIAL PRIMARY KEY,
		id          TEXT NOT NULL UNIQUE,
		user_id     TEXT NOT NULL,
		crypto_id   TEXT NOT NULL,
		type        TEXT NOT NULL CHECK (type IN ('buy', 'sell', 'deposit', 'withdrawal')),
		wallet      TEXT NOT NULL DEFAULT '',
		amount      NUMERIC(38, 18) NOT NULL CHECK (amount > 0),
		price       NUMERIC(38, 18) NOT NULL,
		status      TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'cancelled')),
		created_at  TIMESTAMPTZ NOT NULL,
		approved_at TIMESTAMPTZ,
		CHECK ((status = 'completed') = (approved_at IS NOT NULL))
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_user_id_idx ON transactions (user_id)`,
	`CREATE TABLE IF NOT EXISTS watchlist (
		seq       BIGSERIAL PRIMARY KEY,
		user_id   TEXT NOT NULL,
		crypto_id TEXT NOT NULL,
		added_at  TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, crypto_id)
	)`,
}

// EnsureSchema creates the tables used by the repositories if they are missing.
func EnsureSchema(ctx context.Context, conn *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
