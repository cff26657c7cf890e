// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"time"

	"cryptocard-ledger/internal/domain"
)

// TransactionRepository persists the transaction log behind the in-process store.
type TransactionRepository interface {
	// ListTransactions returns every persisted transaction in insertion order.
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	// CreateTransaction appends a new transaction record.
	CreateTransaction(ctx context.Context, transaction *domain.Transaction) error
	// UpdateTransactionStatus moves a transaction from one status to another.
	// It fails with util.ErrInvalidTransition when the stored status is not from.
	UpdateTransactionStatus(ctx context.Context, id string, from, to domain.TransactionStatus, approvedAt *time.Time) error
}
