package repository

import (
	"context"

	"cryptocard-ledger/internal/domain"
)

// WatchlistRepository stores the assets each user follows.
type WatchlistRepository interface {
	// ListWatchlist returns a user's entries in the order they were added.
	ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error)
	// AddToWatchlist stores entry and reports whether it was new.
	AddToWatchlist(ctx context.Context, entry *domain.WatchlistEntry) (bool, error)
	// RemoveFromWatchlist deletes an entry and reports whether it existed.
	RemoveFromWatchlist(ctx context.Context, userID, cryptoID string) (bool, error)
}
