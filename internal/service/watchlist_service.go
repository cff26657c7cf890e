package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/repository"
	"cryptocard-ledger/internal/util"
)

var cryptoIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// WatchlistService manages the assets each user follows.
type WatchlistService interface {
	List(ctx context.Context, userID string) ([]domain.WatchlistEntry, error)
	Add(ctx context.Context, userID, cryptoID string) error
	Remove(ctx context.Context, userID, cryptoID string) error
}

type watchlistService struct {
	repo   repository.WatchlistRepository
	now    func() time.Time
	logger *slog.Logger
}

func NewWatchlistService(repo repository.WatchlistRepository, logger *slog.Logger) WatchlistService {
	return &watchlistService{repo: repo, now: time.Now, logger: logger}
}

func normalizeCryptoID(cryptoID string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(cryptoID))
	if !cryptoIDPattern.MatchString(id) {
		return "", util.NewValidationError("crypto_id", fmt.Sprintf("invalid asset id %q", cryptoID))
	}
	return id, nil
}

func (s *watchlistService) List(ctx context.Context, userID string) ([]domain.WatchlistEntry, error) {
	if userID == "" {
		return nil, util.NewValidationError("user_id", "is required")
	}
	entries, err := s.repo.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	return entries, nil
}

// Add follows cryptoID. Following an asset twice is not an error.
func (s *watchlistService) Add(ctx context.Context, userID, cryptoID string) error {
	if userID == "" {
		return util.NewValidationError("user_id", "is required")
	}
	id, err := normalizeCryptoID(cryptoID)
	if err != nil {
		return err
	}
	added, err := s.repo.AddToWatchlist(ctx, &domain.WatchlistEntry{UserID: userID, CryptoID: id, AddedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("add to watchlist: %w", err)
	}
	if added {
		s.logger.Debug("Asset added to watchlist", "user_id", userID, "crypto_id", id)
	}
	return nil
}

// Remove unfollows cryptoID. Removing an asset that is not followed is a no-op.
func (s *watchlistService) Remove(ctx context.Context, userID, cryptoID string) error {
	if userID == "" {
		return util.NewValidationError("user_id", "is required")
	}
	id, err := normalizeCryptoID(cryptoID)
	if err != nil {
		return err
	}
	if _, err := s.repo.RemoveFromWatchlist(ctx, userID, id); err != nil {
		return fmt.Errorf("remove from watchlist: %w", err)
	}
	return nil
}
