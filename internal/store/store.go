// Package store owns the transaction log. Every read-check-write on it runs
// under one mutex, which is the single ordering point for status changes.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/repository"
	"cryptocard-ledger/internal/util"
)

// Option customises a TransactionStore.
type Option func(*TransactionStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *TransactionStore) { s.now = now }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *TransactionStore) { s.newID = newID }
}

// TransactionStore is the in-process transaction log with write-through
// persistence to a repository.TransactionRepository.
type TransactionStore struct {
	repo   repository.TransactionRepository
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu    sync.Mutex
	txs   []domain.Transaction
	index map[string]int
}

// New creates an empty store. Call Load before serving traffic to pick up
// previously persisted transactions.
func New(repo repository.TransactionRepository, logger *slog.Logger, opts ...Option) *TransactionStore {
	s := &TransactionStore{
		repo:   repo,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
		index:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory log with the persisted one.
func (s *TransactionStore) Load(ctx context.Context) error {
	txs, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	index := make(map[string]int, len(txs))
	for i, tx := range txs {
		if _, dup := index[tx.ID]; dup {
			return fmt.Errorf("load: duplicate transaction id %s: %w", tx.ID, util.ErrDuplicateEntry)
		}
		index[tx.ID] = i
	}

	s.mu.Lock()
	s.txs = txs
	s.index = index
	s.mu.Unlock()

	s.logger.Info("Transaction log loaded", "count", len(txs))
	return nil
}

// ValidateDraft rejects drafts that can never become a valid transaction.
func ValidateDraft(draft domain.TransactionDraft) error {
	if strings.TrimSpace(draft.UserID) == "" {
		return util.NewValidationError("user_id", "is required")
	}
	if !draft.Type.Valid() {
		return util.NewValidationError("type", fmt.Sprintf("unknown transaction type %q", draft.Type))
	}
	if draft.Type == domain.TransactionTypeBuy || draft.Type == domain.TransactionTypeSell {
		asset := strings.TrimSpace(draft.CryptoID)
		if asset == "" {
			return util.NewValidationError("crypto_id", fmt.Sprintf("is required for a %s", draft.Type))
		}
		if strings.EqualFold(asset, domain.FiatAssetID) {
			return util.NewValidationError("crypto_id", fmt.Sprintf("cannot %s the fiat asset", draft.Type))
		}
	}
	if !draft.Amount.IsPositive() {
		return util.NewValidationError("amount", "must be greater than 0")
	}
	if !draft.Price.IsPositive() {
		return util.NewValidationError("price", "must be greater than 0")
	}
	return nil
}

// Add validates draft, assigns a fresh id, stores the transaction as pending
// and returns it.
func (s *TransactionStore) Add(ctx context.Context, draft domain.TransactionDraft) (domain.Transaction, error) {
	if err := ValidateDraft(draft); err != nil {
		return domain.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	if _, taken := s.index[id]; taken {
		return domain.Transaction{}, fmt.Errorf("add: generated id %s already in use: %w", id, util.ErrDuplicateEntry)
	}

	tx := domain.NewTransaction(id, draft, s.now())
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("add: %w", err)
	}

	s.index[tx.ID] = len(s.txs)
	s.txs = append(s.txs, *tx)
	return *tx, nil
}

// Get returns the transaction with the given id.
func (s *TransactionStore) Get(ctx context.Context, id string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Transaction{}, util.NewNotFoundError("transaction", id)
	}
	return s.txs[i], nil
}

// SetStatus moves a pending transaction to completed or cancelled. Completing
// stamps ApprovedAt. Anything else fails with *util.InvalidTransitionError and
// leaves the log untouched.
func (s *TransactionStore) SetStatus(ctx context.Context, id string, to domain.TransactionStatus) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Transaction{}, util.NewNotFoundError("transaction", id)
	}
	current := s.txs[i]

	if !domain.CanTransition(current.Status, to) {
		reason := fmt.Sprintf("%s is not a successor of pending", to)
		if current.Status.Terminal() {
			reason = fmt.Sprintf("transaction is already %s", current.Status)
		}
		return current, &util.InvalidTransitionError{ID: id, From: string(current.Status), To: string(to), Reason: reason}
	}

	var approvedAt *time.Time
	if to == domain.TransactionStatusCompleted {
		at := s.now().UTC()
		approvedAt = &at
	}

	if err := s.repo.UpdateTransactionStatus(ctx, id, current.Status, to, approvedAt); err != nil {
		return current, fmt.Errorf("set status: %w", err)
	}

	updated := current
	updated.Status = to
	updated.ApprovedAt = approvedAt
	s.txs[i] = updated
	return updated, nil
}

// List returns a copy of the log in insertion order.
func (s *TransactionStore) List(ctx context.Context) []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}
