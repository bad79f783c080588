// Package venue picks the cheaper execution venue for a trade.
package venue

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

// Cost model constants. The retail venue hides its cost in a wide spread;
// the pro venue charges a tight spread plus an explicit fee.
var (
	retailSpreadRate = decimal.NewFromFloat(0.0125) // ~1.25% spread, no explicit fee
	proTotalRate     = decimal.NewFromFloat(0.0025) // ~0.05% spread + 0.2% fee
	proMinValue      = decimal.NewFromInt(100)
)

// Quote is a venue choice with its estimated execution cost in USD.
type Quote struct {
	Venue domain.Venue
	Fee   decimal.Decimal
}

// Selector is a swappable venue-selection strategy.
type Selector func(tradeValue decimal.Decimal) Quote

// Select routes trades above 100 USD to the pro venue when it is cheaper.
// The 100 USD floor is a minimum-size heuristic covering the pro venue's
// fixed overhead, not a cost crossover: with the constants above the pro
// venue is cheaper at any size.
func Select(tradeValue decimal.Decimal) Quote {
	retailCost := tradeValue.Mul(retailSpreadRate)
	proCost := tradeValue.Mul(proTotalRate)

	if tradeValue.GreaterThan(proMinValue) && proCost.LessThan(retailCost) {
		return Quote{Venue: domain.VenuePro, Fee: proCost}
	}
	return Quote{Venue: domain.VenueRetail, Fee: retailCost}
}
