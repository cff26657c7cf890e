package repository

import (
	"context"
	"database/sql"
)

// DBExecutor defines the common database operations needed by SQL repositories.
// Both *sqlx.DB and *sqlx.Tx implement these methods, so helpers can run on
// either a direct connection or inside a transaction.
type DBExecutor interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
