package postgres

import (
	"context"
	"fmt"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/repository"

	"github.com/jmoiron/sqlx"
)

// WatchlistRepository implements repository.WatchlistRepository for PostgreSQL.
type WatchlistRepository struct {
	db *sqlx.DB
}

// NewWatchlistRepository creates a new WatchlistRepository.
func NewWatchlistRepository(conn *sqlx.DB) *WatchlistRepository {
	return &WatchlistRepository{db: conn}
}

var _ repository.WatchlistRepository = (*WatchlistRepository)(nil)

// ListWatchlist retrieves a user's watchlist in insertion order.
func (r *WatchlistRepository) ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error) {
	entries := []domain.WatchlistEntry{}
	query := `SELECT user_id, crypto_id, added_at FROM watchlist WHERE user_id = $1 ORDER BY seq ASC`
	if err := r.db.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list watchlist for user %s: %w", userID, err)
	}
	return entries, nil
}

// AddToWatchlist inserts an entry unless the user already follows the asset.
func (r *WatchlistRepository) AddToWatchlist(ctx context.Context, entry *domain.WatchlistEntry) (bool, error) {
	query := `INSERT INTO watchlist (user_id, crypto_id, added_at) VALUES ($1, $2, $3)
              ON CONFLICT (user_id, crypto_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, entry.UserID, entry.CryptoID, entry.AddedAt)
	if err != nil {
		return false, fmt.Errorf("failed to add %s to watchlist of user %s: %w", entry.CryptoID, entry.UserID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected after adding to watchlist: %w", err)
	}
	return rowsAffected > 0, nil
}

// RemoveFromWatchlist deletes an entry.
func (r *WatchlistRepository) RemoveFromWatchlist(ctx context.Context, userID, cryptoID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM watchlist WHERE user_id = $1 AND crypto_id = $2`, userID, cryptoID)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s from watchlist of user %s: %w", cryptoID, userID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected after removing from watchlist: %w", err)
	}
	return rowsAffected > 0, nil
}
