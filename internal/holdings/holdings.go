// Package holdings derives a user's per-asset balances from the transaction
// history. It keeps no state: the same history always yields the same result.
package holdings

import (
	"github.com/shopspring/decimal"

	"cryptocard-ledger/internal/domain"
)

// DefaultCommission is the platform fee deducted when value crosses between
// fiat and an asset.
var DefaultCommission = decimal.RequireFromString("0.14")

// Compute folds every completed transaction of userID into holdings.
//
//	buy, deposit: asset += amount * (1 - commission) / price
//	sell:         asset -= amount; usd += amount * price * (1 - commission)
//	withdrawal:   asset -= amount / price
//
// Pending and cancelled transactions contribute nothing. Assets whose
// quantity folds to exactly zero are omitted.
func Compute(txs []domain.Transaction, userID string, commission decimal.Decimal) domain.Holdings {
	net := decimal.NewFromInt(1).Sub(commission)
	out := make(domain.Holdings)

	for _, tx := range txs {
		if tx.UserID != userID || tx.Status != domain.TransactionStatusCompleted {
			continue
		}
		if !tx.Price.IsPositive() {
			continue
		}
		asset := tx.AssetID()

		switch tx.Type {
		case domain.TransactionTypeBuy, domain.TransactionTypeDeposit:
			out[asset] = out.Of(asset).Add(tx.Amount.Mul(net).Div(tx.Price))
		case domain.TransactionTypeSell:
			out[asset] = out.Of(asset).Sub(tx.Amount)
			out[domain.FiatAssetID] = out.Of(domain.FiatAssetID).Add(tx.Amount.Mul(tx.Price).Mul(net))
		case domain.TransactionTypeWithdrawal:
			out[asset] = out.Of(asset).Sub(tx.Amount.Div(tx.Price))
		}
	}

	for asset, q := range out {
		if q.IsZero() {
			delete(out, asset)
		}
	}
	return out
}

// Required returns the quantity of the transaction's asset that a sell or
// withdrawal draws down, and false for kinds that only credit.
func Required(tx domain.TransactionDraft) (decimal.Decimal, bool) {
	switch tx.Type {
	case domain.TransactionTypeSell:
		return tx.Amount, true
	case domain.TransactionTypeWithdrawal:
		if !tx.Price.IsPositive() {
			return decimal.Zero, false
		}
		return tx.Amount.Div(tx.Price), true
	}
	return decimal.Zero, false
}
