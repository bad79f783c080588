package internal

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"github.com/vadiminshakov/kustodian/internal/services/risk"
	"github.com/vadiminshakov/kustodian/internal/services/valuation"
)

// Performance is the portfolio health report served over the API.
type Performance struct {
	Portfolio            string                     `json:"portfolio"`
	CurrentValue         decimal.Decimal            `json:"current_value"`
	Assets               map[string]AssetBreakdown  `json:"assets"`
	TargetAllocation     []domain.AllocationEntry   `json:"target_allocation"`
	DiversificationRatio float64                    `json:"diversification_ratio"`
	RiskMetrics          *risk.Metrics              `json:"risk_metrics,omitempty"`
	History              []domain.PortfolioSnapshot `json:"history"`
}

// AssetBreakdown is one valued position in the report.
type AssetBreakdown struct {
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
	Percent  decimal.Decimal `json:"percent"`
}

// Performance assembles current valuation, risk metrics over the last
// `days` days of snapshots, and the diversification ratio. Too short a
// history leaves RiskMetrics nil, which callers must read as "insufficient
// data", not as zero risk.
func (r *Rebalancer) Performance(ctx context.Context, days int) (*Performance, error) {
	balances, err := r.wallet.Balances(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch balances")
	}
	prices, err := r.pricer.Prices(ctx, priceUniverse(balances, r.target))
	if err != nil {
		return nil, errors.Wrap(err, "fetch prices")
	}

	val := valuation.Value(balances, prices)
	percents := val.CurrentPercents()

	assets := make(map[string]AssetBreakdown, len(val.Assets))
	for asset, av := range val.Assets {
		assets[asset] = AssetBreakdown{
			Quantity: av.Quantity,
			Price:    av.Price,
			Value:    av.Value,
			Percent:  percents[asset],
		}
	}

	report := &Performance{
		Portfolio:            r.name,
		CurrentValue:         val.Total,
		Assets:               assets,
		TargetAllocation:     r.target.Entries(),
		DiversificationRatio: risk.DiversificationRatio(r.target),
	}

	snapshots, err := r.store.Snapshots(ctx, r.name, days)
	if err != nil {
		return nil, errors.Wrap(err, "load snapshot history")
	}
	report.History = snapshots

	metrics, err := risk.PortfolioMetrics(snapshots)
	switch {
	case err == nil:
		report.RiskMetrics = &metrics
	case errors.Is(err, risk.ErrInsufficientData):
		// not enough history yet, leave metrics nil
	default:
		return nil, errors.Wrap(err, "compute risk metrics")
	}

	return report, nil
}
