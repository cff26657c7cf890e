package domain

import "time"

// WatchlistEntry is one asset a user follows.
type WatchlistEntry struct {
	UserID   string    `db:"user_id" json:"user_id"`
	CryptoID string    `db:"crypto_id" json:"crypto_id"`
	AddedAt  time.Time `db:"added_at" json:"added_at"`
}
