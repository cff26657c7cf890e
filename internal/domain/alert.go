package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Alert tells administrators that a transaction is waiting for approval.
type Alert struct {
	TransactionID string          `json:"transaction_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
}

// AlertBatch groups the alerts produced by one observation of the pending set.
type AlertBatch struct {
	Alerts     []Alert   `json:"alerts"`
	ObservedAt time.Time `json:"observed_at"`
}

// Title returns the short heading shown to administrators.
func (b AlertBatch) Title() string {
	if len(b.Alerts) == 1 {
		return "New Transaction Pending"
	}
	return "New Transactions Pending"
}

// Summary renders a one-line description of the batch.
func (b AlertBatch) Summary() string {
	switch len(b.Alerts) {
	case 0:
		return ""
	case 1:
		a := b.Alerts[0]
		return fmt.Sprintf("%s transaction of $%s requires your approval.", capitalize(string(a.Type)), a.Amount.StringFixed(2))
	default:
		return fmt.Sprintf("%d new transactions require your approval.", len(b.Alerts))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
