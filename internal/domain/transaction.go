package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// FiatAssetID is the reserved asset identifier used by fiat deposits and withdrawals.
const FiatAssetID = "usd"

// TransactionType defines the kind of a user request.
type TransactionType string

const (
	TransactionTypeBuy        TransactionType = "buy"
	TransactionTypeSell       TransactionType = "sell"
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
)

// Valid reports whether t is one of the four known kinds.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeBuy, TransactionTypeSell, TransactionTypeDeposit, TransactionTypeWithdrawal:
		return true
	}
	return false
}

// TransactionStatus defines the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusCancelled
}

// CanTransition reports whether from -> to is a legal status change.
// Only pending may move, and only to completed or cancelled.
func CanTransition(from, to TransactionStatus) bool {
	return from == TransactionStatusPending &&
		(to == TransactionStatusCompleted || to == TransactionStatusCancelled)
}

// Transaction represents a user's buy, sell, deposit or withdrawal request.
// Only Status and ApprovedAt change after creation.
type Transaction struct {
	ID         string            `db:"id" json:"id"`
	UserID     string            `db:"user_id" json:"user_id"`
	CryptoID   string            `db:"crypto_id" json:"crypto_id"`
	Type       TransactionType   `db:"type" json:"type"`
	Wallet     string            `db:"wallet" json:"wallet"`
	Amount     decimal.Decimal   `db:"amount" json:"amount"` // USD for buy/deposit/withdrawal, asset units for sell
	Price      decimal.Decimal   `db:"price" json:"price"`   // Unit price captured at submission
	Status     TransactionStatus `db:"status" json:"status"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	ApprovedAt *time.Time        `db:"approved_at" json:"approved_at,omitempty"` // Set iff Status is completed
	Seq        int64             `db:"seq" json:"-"`                             // Insertion order in the durable store
}

// TransactionDraft holds the caller-supplied fields of a new transaction.
type TransactionDraft struct {
	UserID   string          `json:"user_id"`
	CryptoID string          `json:"crypto_id"`
	Type     TransactionType `json:"type"`
	Wallet   string          `json:"wallet"`
	Amount   decimal.Decimal `json:"amount"`
	Price    decimal.Decimal `json:"price"`
}

// NewTransaction creates a pending Transaction from a draft.
func NewTransaction(id string, draft TransactionDraft, createdAt time.Time) *Transaction {
	return &Transaction{
		ID:        id,
		UserID:    draft.UserID,
		CryptoID:  draft.CryptoID,
		Type:      draft.Type,
		Wallet:    draft.Wallet,
		Amount:    draft.Amount,
		Price:     draft.Price,
		Status:    TransactionStatusPending,
		CreatedAt: createdAt.UTC(),
	}
}

// AssetID returns the asset the transaction moves, defaulting to fiat.
func (t Transaction) AssetID() string {
	if t.CryptoID == "" {
		return FiatAssetID
	}
	return t.CryptoID
}
