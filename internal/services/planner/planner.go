// Package planner computes the buy/sell instructions that move a portfolio
// from its current allocation to its target allocation.
package planner

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"github.com/vadiminshakov/kustodian/internal/services/valuation"
	"go.uber.org/zap"
)

// deadBand is the percent-point difference under which no trade is planned;
// it keeps floating-point noise from generating micro-trades.
var deadBand = decimal.NewFromFloat(0.1)

// Planner sizes rebalance trades. It is stateless; one instance can serve
// any number of portfolios.
type Planner struct {
	logger *zap.Logger
}

// New creates a planner.
func New(logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{logger: logger}
}

// Plan computes one instruction per drifted target asset. Instructions come
// out in the target allocation's insertion order, which makes the plan
// deterministic and reproducible.
//
// Per asset: the percent gap to target is translated into a USD value gap
// and then into an asset-native quantity at the current price. An asset the
// portfolio does not hold counts as 0% current. Assets inside the dead band
// are skipped; assets without a usable price cannot be sized and are skipped
// with a warning (a data-quality gap, not an error); trades worth less than
// minTradeValue are dropped as not economically worthwhile. A portfolio with
// zero total value yields an empty plan.
func (p *Planner) Plan(val valuation.Valuation, prices domain.PriceMap, target domain.Allocation, minTradeValue decimal.Decimal) []domain.TradeInstruction {
	current := val.CurrentPercents()
	hundred := decimal.NewFromInt(100)

	var instructions []domain.TradeInstruction
	for _, entry := range target.Entries() {
		currentPercent := current[entry.Asset]
		percentDiff := entry.Percent.Sub(currentPercent)

		if percentDiff.Abs().LessThanOrEqual(deadBand) {
			continue
		}

		valueDiff := percentDiff.Div(hundred).Mul(val.Total)

		price, ok := prices[entry.Asset]
		if !ok || !price.IsPositive() {
			p.logger.Warn("cannot size trade without a price",
				zap.String("asset", entry.Asset),
				zap.String("value_diff", valueDiff.String()))
			continue
		}

		if valueDiff.Abs().LessThan(minTradeValue) {
			continue
		}

		quantityDiff := valueDiff.Div(price)
		side := domain.SideBuy
		if quantityDiff.IsNegative() {
			side = domain.SideSell
		}

		instructions = append(instructions, domain.TradeInstruction{
			Asset:          entry.Asset,
			Side:           side,
			Quantity:       quantityDiff.Abs(),
			EstimatedValue: valueDiff.Abs(),
			CurrentPercent: currentPercent,
			TargetPercent:  entry.Percent,
			Price:          price,
		})
	}

	return instructions
}
