// Package pricer provides USD price oracles backed by exchange public APIs.
package pricer

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

// Pricer returns current USD prices for a set of assets. Implementations may
// return fewer keys than requested: a missing key means the price is unknown
// right now. An unknown symbol is never an error, it is simply omitted.
type Pricer interface {
	Prices(ctx context.Context, assets []string) (domain.PriceMap, error)
}

// stablecoins are pinned at 1 USD instead of being quoted.
var stablecoins = map[string]struct{}{
	"USDT": {}, "USDC": {}, "DAI": {},
}

func stablePrice(asset string) (decimal.Decimal, bool) {
	if _, ok := stablecoins[asset]; ok {
		return decimal.NewFromInt(1), true
	}
	return decimal.Decimal{}, false
}
