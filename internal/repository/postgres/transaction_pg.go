// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/repository"
	"cryptocard-ledger/internal/util"
	"cryptocard-ledger/pkg/db"

	"github.com/jmoiron/sqlx"
)

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct {
	db         *sqlx.DB
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(conn *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{
		db:         conn,
		beginTx:    db.BeginTx,
		commitTx:   db.CommitTx,
		rollbackTx: db.RollbackTx,
	}
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

const transactionColumns = `seq, id, user_id, crypto_id, type, wallet, amount, price, status, created_at, approved_at`

// ListTransactions returns every transaction ordered by insertion sequence.
func (r *TransactionRepository) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	transactions := []domain.Transaction{}
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY seq ASC`
	if err := r.db.SelectContext(ctx, &transactions, query); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

// CreateTransaction inserts a new transaction record and stores its sequence number.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, transaction *domain.Transaction) error {
	return insertTransaction(ctx, r.db, transaction)
}

func insertTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `INSERT INTO transactions (id, user_id, crypto_id, type, wallet, amount, price, status, created_at, approved_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING seq`

	err := q.QueryRowContext(ctx, query,
		transaction.ID,
		transaction.UserID,
		transaction.CryptoID,
		transaction.Type,
		transaction.Wallet,
		transaction.Amount,
		transaction.Price,
		transaction.Status,
		transaction.CreatedAt,
		transaction.ApprovedAt,
	).Scan(&transaction.Seq)
	if err != nil {
		return fmt.Errorf("failed to create transaction %s: %w", transaction.ID, err)
	}
	return nil
}

// UpdateTransactionStatus locks the row, checks the stored status and applies
// the change inside one database transaction, so a second writer sharing the
// table cannot complete the same transaction twice.
func (r *TransactionRepository) UpdateTransactionStatus(ctx context.Context, id string, from, to domain.TransactionStatus, approvedAt *time.Time) error {
	txController, err := r.beginTx(ctx, r.db)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	defer r.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("update status: transaction controller does not implement DBExecutor")
	}

	var current domain.TransactionStatus
	err = txExecutor.GetContext(ctx, &current, `SELECT status FROM transactions WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return util.NewNotFoundError("transaction", id)
		}
		return fmt.Errorf("update status: failed to lock transaction %s: %w", id, err)
	}
	if current != from {
		return &util.InvalidTransitionError{ID: id, From: string(current), To: string(to), Reason: "stored status changed"}
	}

	_, err = txExecutor.ExecContext(ctx,
		`UPDATE transactions SET status = $1, approved_at = $2 WHERE id = $3`,
		to, approvedAt, id)
	if err != nil {
		return fmt.Errorf("update status: failed to update transaction %s: %w", id, err)
	}

	if err := r.commitTx(txController); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}
