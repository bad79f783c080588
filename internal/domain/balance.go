package domain

import "github.com/shopspring/decimal"

// Balance is the canonical per-asset holding shape. Exchange responses come
// in several duck shapes (flat numbers, nested records); they are normalized
// into this struct once at the wallet boundary and nowhere else.
type Balance struct {
	// Available is the quantity free for trading.
	Available decimal.Decimal
	// Total is the full holding including locked funds.
	Total decimal.Decimal
	// InOrders is the quantity locked in open orders.
	InOrders decimal.Decimal
	// USDValue is the last known dollar value of the available quantity,
	// zero when the price is unknown.
	USDValue decimal.Decimal
}

// NewBalance normalizes raw exchange numbers into a Balance. A missing total
// is reconstructed from available+locked; a total smaller than its parts is
// kept as reported since reconciliation is the exchange's problem.
func NewBalance(available, total, locked decimal.Decimal) Balance {
	if total.IsZero() && (!available.IsZero() || !locked.IsZero()) {
		total = available.Add(locked)
	}
	return Balance{
		Available: available,
		Total:     total,
		InOrders:  locked,
	}
}

// IsZero reports whether the holding is empty in every dimension.
func (b Balance) IsZero() bool {
	return b.Available.IsZero() && b.Total.IsZero() && b.InOrders.IsZero()
}

// PriceMap maps asset symbol to its current USD price. A missing key means
// the price is unknown; consumers must never treat absence as zero price and
// must never divide by a zero price.
type PriceMap map[string]decimal.Decimal
