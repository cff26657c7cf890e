// Package views holds the read-only projections over the transaction log used
// by both the admin and the user-facing history screens.
package views

import "cryptocard-ledger/internal/domain"

// Filter returns the transactions for which keep is true, in log order.
func Filter(txs []domain.Transaction, keep func(domain.Transaction) bool) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// ByStatus keeps transactions in the given status.
func ByStatus(txs []domain.Transaction, status domain.TransactionStatus) []domain.Transaction {
	return Filter(txs, func(tx domain.Transaction) bool { return tx.Status == status })
}

func Pending(txs []domain.Transaction) []domain.Transaction {
	return ByStatus(txs, domain.TransactionStatusPending)
}

func Completed(txs []domain.Transaction) []domain.Transaction {
	return ByStatus(txs, domain.TransactionStatusCompleted)
}

func Cancelled(txs []domain.Transaction) []domain.Transaction {
	return ByStatus(txs, domain.TransactionStatusCancelled)
}

// ByType keeps transactions of one kind.
func ByType(txs []domain.Transaction, txType domain.TransactionType) []domain.Transaction {
	return Filter(txs, func(tx domain.Transaction) bool { return tx.Type == txType })
}

// ByUser keeps transactions owned by userID.
func ByUser(txs []domain.Transaction, userID string) []domain.Transaction {
	return Filter(txs, func(tx domain.Transaction) bool { return tx.UserID == userID })
}

// Query combines optional status, type and user filters. Zero values match all.
type Query struct {
	Status domain.TransactionStatus
	Type   domain.TransactionType
	UserID string
}

// Apply runs q over txs.
func (q Query) Apply(txs []domain.Transaction) []domain.Transaction {
	return Filter(txs, func(tx domain.Transaction) bool {
		return (q.Status == "" || tx.Status == q.Status) &&
			(q.Type == "" || tx.Type == q.Type) &&
			(q.UserID == "" || tx.UserID == q.UserID)
	})
}
