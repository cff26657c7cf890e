package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"cryptocard-ledger/internal/domain"
	"cryptocard-ledger/internal/repository/postgres"
	"cryptocard-ledger/internal/util"
	"cryptocard-ledger/pkg/db"
)

// startPostgres runs a throwaway PostgreSQL container and returns a connection
// with the schema applied.
func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("ledgerdb_test"),
		tcpostgres.WithUsername("user"),
		tcpostgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, postgres.EnsureSchema(ctx, conn))
	return conn
}

func newPendingTransaction(id string) *domain.Transaction {
	return domain.NewTransaction(id, domain.TransactionDraft{
		UserID:   "1",
		CryptoID: "btc",
		Type:     domain.TransactionTypeBuy,
		Wallet:   "0xabc0000000",
		Amount:   decimal.NewFromInt(100),
		Price:    decimal.NewFromInt(50000),
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func TestTransactionRepositoryIntegration(t *testing.T) {
	conn := startPostgres(t)
	repo := postgres.NewTransactionRepository(conn)
	ctx := context.Background()

	first := newPendingTransaction("tx-1")
	second := newPendingTransaction("tx-2")
	require.NoError(t, repo.CreateTransaction(ctx, first))
	require.NoError(t, repo.CreateTransaction(ctx, second))
	assert.Less(t, first.Seq, second.Seq)

	t.Run("ListPreservesInsertionOrderAndFields", func(t *testing.T) {
		transactions, err := repo.ListTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, transactions, 2)
		assert.Equal(t, "tx-1", transactions[0].ID)
		assert.Equal(t, "tx-2", transactions[1].ID)
		assert.True(t, first.Amount.Equal(transactions[0].Amount))
		assert.True(t, first.Price.Equal(transactions[0].Price))
		assert.True(t, first.CreatedAt.Equal(transactions[0].CreatedAt))
		assert.Nil(t, transactions[0].ApprovedAt)
	})

	t.Run("ApproveThenRetry", func(t *testing.T) {
		approvedAt := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
		err := repo.UpdateTransactionStatus(ctx, "tx-1", domain.TransactionStatusPending, domain.TransactionStatusCompleted, &approvedAt)
		require.NoError(t, err)

		err = repo.UpdateTransactionStatus(ctx, "tx-1", domain.TransactionStatusPending, domain.TransactionStatusCompleted, &approvedAt)
		assert.ErrorIs(t, err, util.ErrInvalidTransition)

		transactions, err := repo.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tx-1", transactions[0].ID, "status change must not reorder the log")
		assert.Equal(t, domain.TransactionStatusCompleted, transactions[0].Status)
		require.NotNil(t, transactions[0].ApprovedAt)
		assert.True(t, approvedAt.Equal(*transactions[0].ApprovedAt))
	})

	t.Run("UnknownID", func(t *testing.T) {
		err := repo.UpdateTransactionStatus(ctx, "missing", domain.TransactionStatusPending, domain.TransactionStatusCancelled, nil)
		assert.ErrorIs(t, err, util.ErrNotFound)
	})

	t.Run("ConcurrentWritersOnSameRow", func(t *testing.T) {
		var wg sync.WaitGroup
		results := make([]error, 2)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = repo.UpdateTransactionStatus(ctx, "tx-2", domain.TransactionStatusPending, domain.TransactionStatusCancelled, nil)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range results {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, util.ErrInvalidTransition)
			}
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestWatchlistRepositoryIntegration(t *testing.T) {
	conn := startPostgres(t)
	repo := postgres.NewWatchlistRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	added, err := repo.AddToWatchlist(ctx, &domain.WatchlistEntry{UserID: "1", CryptoID: "btc", AddedAt: now})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.AddToWatchlist(ctx, &domain.WatchlistEntry{UserID: "1", CryptoID: "btc", AddedAt: now})
	require.NoError(t, err)
	assert.False(t, added)

	_, err = repo.AddToWatchlist(ctx, &domain.WatchlistEntry{UserID: "1", CryptoID: "eth", AddedAt: now})
	require.NoError(t, err)

	entries, err := repo.ListWatchlist(ctx, "1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "btc", entries[0].CryptoID)
	assert.Equal(t, "eth", entries[1].CryptoID)

	removed, err := repo.RemoveFromWatchlist(ctx, "1", "btc")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveFromWatchlist(ctx, "1", "btc")
	require.NoError(t, err)
	assert.False(t, removed)
}
