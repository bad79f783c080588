// Package valuation combines balances and prices into USD portfolio values.
package valuation

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

// AssetValue is the valued position of a single asset.
type AssetValue struct {
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Value    decimal.Decimal
}

// Valuation is the result of one valuation pass.
//
// Assets with no price entry are OMITTED from Assets and from Total rather
// than counted as zero: counting them as zero would silently inflate every
// other asset's allocation percentage while still pretending the total is
// complete. The omission is surfaced in Unpriced so callers can distinguish
// "not valued" from "worth nothing". This policy is applied uniformly at
// every call site.
type Valuation struct {
	// Total is the sum of all valued positions, always >= 0.
	Total decimal.Decimal
	// Assets maps asset to its valued position.
	Assets map[string]AssetValue
	// Unpriced lists assets that held a balance but had no usable price,
	// sorted for deterministic output.
	Unpriced []string
}

// Value prices the available quantity of each balance. A portfolio with no
// usable prices yields a zero total and an empty asset map; it never fails.
// Prices that are zero or negative are treated as unknown.
func Value(balances map[string]domain.Balance, prices domain.PriceMap) Valuation {
	v := Valuation{
		Total:  decimal.Zero,
		Assets: make(map[string]AssetValue, len(balances)),
	}

	for asset, balance := range balances {
		price, ok := prices[asset]
		if !ok || !price.IsPositive() {
			v.Unpriced = append(v.Unpriced, asset)
			continue
		}
		quantity := balance.Available
		value := quantity.Mul(price)
		v.Assets[asset] = AssetValue{Quantity: quantity, Price: price, Value: value}
		v.Total = v.Total.Add(value)
	}

	sort.Strings(v.Unpriced)
	return v
}

// Quantities extracts the quantity per valued asset, for snapshotting.
func (v Valuation) Quantities() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(v.Assets))
	for asset, av := range v.Assets {
		out[asset] = av.Quantity
	}
	return out
}

// Prices extracts the price per valued asset, for snapshotting.
func (v Valuation) Prices() domain.PriceMap {
	out := make(domain.PriceMap, len(v.Assets))
	for asset, av := range v.Assets {
		out[asset] = av.Price
	}
	return out
}

// CurrentPercents returns the current allocation in percent per valued
// asset. A zero total yields zero percent for every asset, never a division
// error.
func (v Valuation) CurrentPercents() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(v.Assets))
	for asset, av := range v.Assets {
		if v.Total.IsPositive() {
			out[asset] = av.Value.Div(v.Total).Mul(decimal.NewFromInt(100))
		} else {
			out[asset] = decimal.Zero
		}
	}
	return out
}
