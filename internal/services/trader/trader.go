// Package trader provides the exchange execution collaborators. The engine
// hands a sized instruction to a Trader and records a ledger entry only when
// the result reports a fill.
package trader

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

// Trader places one market order. priceHint is the price the instruction was
// sized at: live implementations ignore it (market orders fill at market),
// the paper implementation fills at it. Implementations are chosen at the
// composition root by configuration, never by type inspection downstream.
type Trader interface {
	PlaceOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity, priceHint decimal.Decimal) (domain.OrderResult, error)
}
