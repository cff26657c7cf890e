// Package memory holds process-local repositories used by tests and by the
// "memory" store backend.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/repository"
	"cryptocard-ledger/internal/util"
)

// TransactionRepository keeps transactions in a slice.
type TransactionRepository struct {
	mu  sync.Mutex
	txs []domain.Transaction
}

// NewTransactionRepository returns a repository seeded with txs.
func NewTransactionRepository(txs ...domain.Transaction) *TransactionRepository {
	r := &TransactionRepository{}
	for _, tx := range txs {
		tx.Seq = int64(len(r.txs) + 1)
		r.txs = append(r.txs, tx)
	}
	return r
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

func (r *TransactionRepository) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Transaction, len(r.txs))
	copy(out, r.txs)
	return out, nil
}

func (r *TransactionRepository) CreateTransaction(ctx context.Context, transaction *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.txs {
		if existing.ID == transaction.ID {
			return fmt.Errorf("failed to create transaction %s: %w", transaction.ID, util.ErrDuplicateEntry)
		}
	}
	transaction.Seq = int64(len(r.txs) + 1)
	r.txs = append(r.txs, *transaction)
	return nil
}

func (r *TransactionRepository) UpdateTransactionStatus(ctx context.Context, id string, from, to domain.TransactionStatus, approvedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.txs {
		if r.txs[i].ID != id {
			continue
		}
		if r.txs[i].Status != from {
			return &util.InvalidTransitionError{ID: id, From: string(r.txs[i].Status), To: string(to), Reason: "stored status changed"}
		}
		r.txs[i].Status = to
		r.txs[i].ApprovedAt = approvedAt
		return nil
	}
	return util.NewNotFoundError("transaction", id)
}
