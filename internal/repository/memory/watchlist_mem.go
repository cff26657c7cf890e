package memory

import (
	"context"
	"sync"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/repository"
)

// WatchlistRepository keeps watchlists per user in insertion order.
type WatchlistRepository struct {
	mu      sync.Mutex
	entries map[string][]domain.WatchlistEntry
}

// NewWatchlistRepository creates an empty WatchlistRepository.
func NewWatchlistRepository() *WatchlistRepository {
	return &WatchlistRepository{entries: make(map[string][]domain.WatchlistEntry)}
}

var _ repository.WatchlistRepository = (*WatchlistRepository)(nil)

func (r *WatchlistRepository) ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.WatchlistEntry, len(r.entries[userID]))
	copy(out, r.entries[userID])
	return out, nil
}

func (r *WatchlistRepository) AddToWatchlist(ctx context.Context, entry *domain.WatchlistEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries[entry.UserID] {
		if e.CryptoID == entry.CryptoID {
			return false, nil
		}
	}
	r.entries[entry.UserID] = append(r.entries[entry.UserID], *entry)
	return true, nil
}

func (r *WatchlistRepository) RemoveFromWatchlist(ctx context.Context, userID, cryptoID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.entries[userID]
	for i, e := range list {
		if e.CryptoID == cryptoID {
			r.entries[userID] = append(list[:i:i], list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
