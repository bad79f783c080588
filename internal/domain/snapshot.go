package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is an immutable record of a valuation pass: the balances
// and prices it saw and the total value they produced. Snapshots form the
// append-only history the risk analyzer works on; they are never mutated
// after creation.
type PortfolioSnapshot struct {
	Portfolio  string                     `json:"portfolio"`
	Balances   map[string]decimal.Decimal `json:"balances"`
	Prices     PriceMap                   `json:"prices"`
	TotalValue decimal.Decimal            `json:"total_value"`
	Timestamp  time.Time                  `json:"ts"`
}

// NewPortfolioSnapshot copies its map arguments so later mutation of the
// caller's maps cannot reach into the snapshot.
func NewPortfolioSnapshot(portfolio string, balances map[string]decimal.Decimal, prices PriceMap, totalValue decimal.Decimal, ts time.Time) PortfolioSnapshot {
	b := make(map[string]decimal.Decimal, len(balances))
	for k, v := range balances {
		b[k] = v
	}
	p := make(PriceMap, len(prices))
	for k, v := range prices {
		p[k] = v
	}
	return PortfolioSnapshot{
		Portfolio:  portfolio,
		Balances:   b,
		Prices:     p,
		TotalValue: totalValue,
		Timestamp:  ts,
	}
}

// SnapshotRecord bundles a snapshot with its position in the journal.
type SnapshotRecord struct {
	Index    uint64
	Snapshot PortfolioSnapshot
}
