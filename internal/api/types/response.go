// Package types holds the JSON envelopes shared by the HTTP handlers.
package types

import (
	"github.com/shopspring/decimal"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/payment"
)

// PaginatedResponse defines a generic structure for paginated API responses.
type PaginatedResponse[T any] struct {
	Data       []T   `json:"data"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	TotalCount int64 `json:"total_count"`
}

// Paginate slices items into a PaginatedResponse. An offset past the end
// yields an empty page.
func Paginate[T any](items []T, limit, offset int) PaginatedResponse[T] {
	total := len(items)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := items[offset:end]
	if page == nil {
		page = []T{}
	}
	return PaginatedResponse[T]{Data: page, Limit: limit, Offset: offset, TotalCount: int64(total)}
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SubmitTransactionRequest is the body of POST /transactions.
type SubmitTransactionRequest struct {
	UserID   string                 `json:"user_id,omitempty"`
	CryptoID string                 `json:"crypto_id"`
	Type     domain.TransactionType `json:"type"`
	Wallet   string                 `json:"wallet"`
	Amount   decimal.Decimal        `json:"amount"`
	Price    decimal.Decimal        `json:"price"`
	Payment  *payment.Instrument    `json:"payment,omitempty"`
}

// SubmitTransactionResponse echoes the stored transaction and, for card
// purchases, the authorization reference.
type SubmitTransactionResponse struct {
	Transaction      domain.Transaction `json:"transaction"`
	PaymentReference string             `json:"payment_reference,omitempty"`
}

// HoldingsResponse lists a user's non-zero balances ordered by asset.
type HoldingsResponse struct {
	UserID   string           `json:"user_id"`
	Holdings []domain.Holding `json:"holdings"`
}

// WatchlistResponse lists the assets a user follows.
type WatchlistResponse struct {
	UserID  string                  `json:"user_id"`
	Entries []domain.WatchlistEntry `json:"entries"`
}
