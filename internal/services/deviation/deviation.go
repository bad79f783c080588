// Package deviation compares current allocation against target allocation
// and decides whether a portfolio has drifted far enough to rebalance.
package deviation

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

// Deviations returns |current% - target%| per asset over the union of both
// key sets. An asset missing from one side counts as 0% on that side.
func Deviations(current map[string]decimal.Decimal, target domain.Allocation) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(current)+target.Len())

	for asset, pct := range current {
		out[asset] = pct.Sub(target.Percent(asset)).Abs()
	}
	for _, asset := range target.Assets() {
		if _, seen := out[asset]; seen {
			continue
		}
		out[asset] = target.Percent(asset).Abs()
	}

	return out
}

// ShouldRebalance reports whether the largest deviation strictly exceeds the
// threshold. A deviation exactly at the threshold does not trigger; an empty
// deviation map never triggers.
func ShouldRebalance(deviations map[string]decimal.Decimal, threshold decimal.Decimal) bool {
	for _, dev := range deviations {
		if dev.GreaterThan(threshold) {
			return true
		}
	}
	return false
}

// Max returns the largest deviation, zero for an empty map.
func Max(deviations map[string]decimal.Decimal) decimal.Decimal {
	max := decimal.Zero
	for _, dev := range deviations {
		if dev.GreaterThan(max) {
			max = dev
		}
	}
	return max
}
