package pricer

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

// StaticPricer serves prices from a fixed table. Used for development and
// paper runs without exchange connectivity; selected at the composition root,
// never by runtime type inspection inside the engine.
type StaticPricer struct {
	table domain.PriceMap
}

// NewStaticPricer builds a static oracle from the given table. A nil table
// falls back to a set of plausible development prices.
func NewStaticPricer(table domain.PriceMap) *StaticPricer {
	if table == nil {
		table = domain.PriceMap{
			"BTC":   decimal.NewFromInt(45000),
			"ETH":   decimal.NewFromInt(3000),
			"ADA":   decimal.NewFromFloat(0.5),
			"DOT":   decimal.NewFromInt(7),
			"MATIC": decimal.NewFromFloat(0.8),
			"LINK":  decimal.NewFromInt(15),
			"UNI":   decimal.NewFromInt(6),
			"SOL":   decimal.NewFromInt(100),
			"AVAX":  decimal.NewFromInt(35),
			"NEXO":  decimal.NewFromFloat(1.2),
		}
	}
	return &StaticPricer{table: table}
}

// Prices returns table entries for the requested assets, pinning stablecoins
// at 1. Unknown assets are omitted.
func (p *StaticPricer) Prices(_ context.Context, assets []string) (domain.PriceMap, error) {
	prices := make(domain.PriceMap, len(assets))
	for _, asset := range assets {
		if price, ok := stablePrice(asset); ok {
			prices[asset] = price
			continue
		}
		if price, ok := p.table[asset]; ok {
			prices[asset] = price
		}
	}
	return prices, nil
}
