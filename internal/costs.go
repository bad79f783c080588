package internal

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

// costAnalysisWindow caps how many recent transactions a cost analysis reads.
const costAnalysisWindow = 100

// VenueCosts aggregates executed trades routed to one venue.
type VenueCosts struct {
	TotalCost        decimal.Decimal `json:"total_cost"`
	TotalVolume      decimal.Decimal `json:"total_volume"`
	AverageFeeRate   decimal.Decimal `json:"average_fee_rate"`
	TransactionCount int             `json:"transaction_count"`
}

// CostAnalysis compares what the portfolio's recent trades cost per venue.
// ProSavings is how much cheaper the pro venue came out against retail over
// the window, zero when retail was not the more expensive one.
type CostAnalysis struct {
	Portfolio  string                      `json:"portfolio"`
	Venues     map[domain.Venue]VenueCosts `json:"venues"`
	ProSavings decimal.Decimal             `json:"pro_savings"`
}

// CostAnalysis aggregates fees and traded volume per venue over the most
// recent transactions. Retail and pro are always reported, even when empty,
// so the savings comparison is never missing a side; other venues appear
// only when they saw trades.
func (r *Rebalancer) CostAnalysis(ctx context.Context) (*CostAnalysis, error) {
	txs, err := r.store.Transactions(ctx, r.name, costAnalysisWindow)
	if err != nil {
		return nil, errors.Wrap(err, "load transaction history")
	}

	type accumulator struct {
		cost   decimal.Decimal
		volume decimal.Decimal
		count  int
	}

	accs := map[domain.Venue]*accumulator{
		domain.VenueRetail: {cost: decimal.Zero, volume: decimal.Zero},
		domain.VenuePro:    {cost: decimal.Zero, volume: decimal.Zero},
	}
	for _, tx := range txs {
		acc, ok := accs[tx.Venue]
		if !ok {
			acc = &accumulator{cost: decimal.Zero, volume: decimal.Zero}
			accs[tx.Venue] = acc
		}
		acc.cost = acc.cost.Add(tx.Fee)
		acc.volume = acc.volume.Add(tx.Value())
		acc.count++
	}

	analysis := &CostAnalysis{
		Portfolio:  r.name,
		Venues:     make(map[domain.Venue]VenueCosts, len(accs)),
		ProSavings: decimal.Zero,
	}
	for venueName, acc := range accs {
		costs := VenueCosts{
			TotalCost:        acc.cost,
			TotalVolume:      acc.volume,
			AverageFeeRate:   decimal.Zero,
			TransactionCount: acc.count,
		}
		if acc.volume.IsPositive() {
			costs.AverageFeeRate = acc.cost.Div(acc.volume)
		}
		analysis.Venues[venueName] = costs
	}

	retailCost := analysis.Venues[domain.VenueRetail].TotalCost
	proCost := analysis.Venues[domain.VenuePro].TotalCost
	if retailCost.GreaterThan(proCost) {
		analysis.ProSavings = retailCost.Sub(proCost)
	}

	return analysis, nil
}
