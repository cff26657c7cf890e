package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Holdings maps an asset ID to the quantity a user holds.
// It is always derived from completed transactions and never stored.
type Holdings map[string]decimal.Decimal

// Holding is a single (asset, quantity) pair.
type Holding struct {
	AssetID  string          `json:"asset_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Of returns the quantity held of assetID, zero when absent.
func (h Holdings) Of(assetID string) decimal.Decimal {
	if q, ok := h[assetID]; ok {
		return q
	}
	return decimal.Zero
}

// Sorted returns the holdings ordered by asset ID.
func (h Holdings) Sorted() []Holding {
	out := make([]Holding, 0, len(h))
	for id, q := range h {
		out = append(out, Holding{AssetID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}
