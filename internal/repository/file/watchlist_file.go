package file

import (
	"context"
	"fmt"
	"sync"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/repository"
)

type watchlistSnapshot struct {
	Version int                     `json:"version"`
	Entries []domain.WatchlistEntry `json:"entries"`
}

// WatchlistRepository keeps every user's watchlist in one JSON file, in the
// order entries were added.
type WatchlistRepository struct {
	path string

	mu      sync.Mutex
	loaded  bool
	entries []domain.WatchlistEntry
}

// NewWatchlistRepository creates a repository backed by path.
func NewWatchlistRepository(path string) *WatchlistRepository {
	return &WatchlistRepository{path: path}
}

var _ repository.WatchlistRepository = (*WatchlistRepository)(nil)

func (r *WatchlistRepository) ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return nil, err
	}
	out := []domain.WatchlistEntry{}
	for _, e := range r.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *WatchlistRepository) AddToWatchlist(ctx context.Context, entry *domain.WatchlistEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return false, err
	}
	if r.indexLocked(entry.UserID, entry.CryptoID) >= 0 {
		return false, nil
	}

	next := append(r.entries[:len(r.entries):len(r.entries)], *entry)
	if err := r.writeLocked(next); err != nil {
		return false, fmt.Errorf("failed to add %s to watchlist of user %s: %w", entry.CryptoID, entry.UserID, err)
	}
	r.entries = next
	return true, nil
}

func (r *WatchlistRepository) RemoveFromWatchlist(ctx context.Context, userID, cryptoID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return false, err
	}
	idx := r.indexLocked(userID, cryptoID)
	if idx < 0 {
		return false, nil
	}

	next := append(r.entries[:idx:idx], r.entries[idx+1:]...)
	if err := r.writeLocked(next); err != nil {
		return false, fmt.Errorf("failed to remove %s from watchlist of user %s: %w", cryptoID, userID, err)
	}
	r.entries = next
	return true, nil
}

func (r *WatchlistRepository) indexLocked(userID, cryptoID string) int {
	for i, e := range r.entries {
		if e.UserID == userID && e.CryptoID == cryptoID {
			return i
		}
	}
	return -1
}

func (r *WatchlistRepository) loadLocked() error {
	if r.loaded {
		return nil
	}

	var snap watchlistSnapshot
	found, err := readSnapshot(r.path, &snap)
	if err != nil {
		return fmt.Errorf("failed to decode watchlist snapshot %s: %w", r.path, err)
	}
	if found && snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported watchlist snapshot version %d", snap.Version)
	}

	r.entries = snap.Entries
	r.loaded = true
	return nil
}

func (r *WatchlistRepository) writeLocked(entries []domain.WatchlistEntry) error {
	return writeSnapshot(r.path, watchlistSnapshot{Version: snapshotVersion, Entries: entries})
}
