package wallet

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

// StaticWallet serves a fixed balance set for development and paper runs.
type StaticWallet struct {
	balances map[string]domain.Balance
}

// NewStaticWallet builds a static balance source. A nil map falls back to a
// small development portfolio.
func NewStaticWallet(balances map[string]domain.Balance) *StaticWallet {
	if balances == nil {
		balances = map[string]domain.Balance{
			"BTC":  domain.NewBalance(decimal.NewFromFloat(0.1), decimal.NewFromFloat(0.11), decimal.NewFromFloat(0.01)),
			"ETH":  domain.NewBalance(decimal.NewFromFloat(2.5), decimal.NewFromInt(3), decimal.NewFromFloat(0.5)),
			"ADA":  domain.NewBalance(decimal.NewFromInt(1000), decimal.NewFromInt(1200), decimal.NewFromInt(200)),
			"USDT": domain.NewBalance(decimal.NewFromInt(5000), decimal.NewFromInt(5000), decimal.Zero),
			"NEXO": domain.NewBalance(decimal.NewFromInt(1000), decimal.NewFromInt(1000), decimal.Zero),
		}
	}
	return &StaticWallet{balances: balances}
}

// Balances returns a copy of the fixed balance set.
func (w *StaticWallet) Balances(_ context.Context) (map[string]domain.Balance, error) {
	out := make(map[string]domain.Balance, len(w.balances))
	for k, v := range w.balances {
		out[k] = v
	}
	return out, nil
}
