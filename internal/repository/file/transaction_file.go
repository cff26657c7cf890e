// Package file persists the transaction log and watchlists as JSON snapshots
// on local disk, giving the store durability across restarts within one
// session.
package file

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/repository"
	"cryptocard-ledger/internal/util"
)

const snapshotVersion = 1

type snapshot struct {
	Version      int                  `json:"version"`
	Transactions []domain.Transaction `json:"transactions"`
}

// TransactionRepository keeps the whole log in a single JSON file and rewrites
// it atomically on every change.
type TransactionRepository struct {
	path string

	mu     sync.Mutex
	loaded bool
	txs    []domain.Transaction
}

// NewTransactionRepository creates a repository backed by path. The file is
// created on the first write.
func NewTransactionRepository(path string) *TransactionRepository {
	return &TransactionRepository{path: path}
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

// ListTransactions returns the persisted log in insertion order.
func (r *TransactionRepository) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, len(r.txs))
	copy(out, r.txs)
	return out, nil
}

// CreateTransaction appends transaction and rewrites the snapshot.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, transaction *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return err
	}
	for _, existing := range r.txs {
		if existing.ID == transaction.ID {
			return fmt.Errorf("failed to create transaction %s: %w", transaction.ID, util.ErrDuplicateEntry)
		}
	}

	transaction.Seq = int64(len(r.txs) + 1)
	next := append(r.txs[:len(r.txs):len(r.txs)], *transaction)
	if err := r.writeLocked(next); err != nil {
		return fmt.Errorf("failed to create transaction %s: %w", transaction.ID, err)
	}
	r.txs = next
	return nil
}

// UpdateTransactionStatus rewrites the status of one record.
func (r *TransactionRepository) UpdateTransactionStatus(ctx context.Context, id string, from, to domain.TransactionStatus, approvedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return err
	}

	idx := -1
	for i := range r.txs {
		if r.txs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return util.NewNotFoundError("transaction", id)
	}
	if r.txs[idx].Status != from {
		return &util.InvalidTransitionError{ID: id, From: string(r.txs[idx].Status), To: string(to), Reason: "stored status changed"}
	}

	next := make([]domain.Transaction, len(r.txs))
	copy(next, r.txs)
	next[idx].Status = to
	next[idx].ApprovedAt = approvedAt

	if err := r.writeLocked(next); err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}
	r.txs = next
	return nil
}

func (r *TransactionRepository) loadLocked() error {
	if r.loaded {
		return nil
	}

	var snap snapshot
	found, err := readSnapshot(r.path, &snap)
	if err != nil {
		return fmt.Errorf("failed to decode transaction snapshot %s: %w", r.path, err)
	}
	if !found {
		r.txs = nil
		r.loaded = true
		return nil
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported transaction snapshot version %d", snap.Version)
	}
	for i := range snap.Transactions {
		snap.Transactions[i].Seq = int64(i + 1)
	}

	r.txs = snap.Transactions
	r.loaded = true
	return nil
}

func (r *TransactionRepository) writeLocked(txs []domain.Transaction) error {
	return writeSnapshot(r.path, snapshot{Version: snapshotVersion, Transactions: txs})
}
