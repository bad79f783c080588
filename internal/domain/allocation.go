// Package domain defines the core data structures of the rebalancing engine.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// allocationEpsilon is the tolerance for the sum-to-100 check; percentages
// entered by hand rarely add up exactly once fractional weights are involved.
var allocationEpsilon = decimal.NewFromFloat(0.01)

// SupportedAssets is the set of tickers the custodial platform can hold.
var SupportedAssets = map[string]struct{}{
	"BTC": {}, "ETH": {}, "ADA": {}, "DOT": {}, "MATIC": {},
	"LINK": {}, "UNI": {}, "SOL": {}, "AVAX": {}, "NEXO": {},
	"USDT": {}, "USDC": {},
}

// AllocationEntry is one asset's target weight in percent (0..100).
type AllocationEntry struct {
	Asset   string
	Percent decimal.Decimal
}

// Allocation is an ordered set of target weights. Entry order is preserved
// so that trade plans derived from it are deterministic.
type Allocation struct {
	entries []AllocationEntry
	index   map[string]int
}

// NewAllocation validates and builds an allocation. It fails when the
// weights do not sum to 100 within epsilon, when an asset repeats, when a
// weight is outside [0, 100], or when an asset is not supported by the
// platform. Assets absent from the allocation are implicitly 0%.
func NewAllocation(entries []AllocationEntry) (Allocation, error) {
	if len(entries) == 0 {
		return Allocation{}, errors.New("allocation must contain at least one asset")
	}

	index := make(map[string]int, len(entries))
	normalized := make([]AllocationEntry, 0, len(entries))
	total := decimal.Zero

	for _, e := range entries {
		asset := strings.ToUpper(strings.TrimSpace(e.Asset))
		if asset == "" {
			return Allocation{}, errors.New("allocation entry with empty asset")
		}
		if _, ok := SupportedAssets[asset]; !ok {
			return Allocation{}, errors.Errorf("unsupported asset %s", asset)
		}
		if _, dup := index[asset]; dup {
			return Allocation{}, errors.Errorf("duplicate asset %s in allocation", asset)
		}
		if e.Percent.IsNegative() || e.Percent.GreaterThan(decimal.NewFromInt(100)) {
			return Allocation{}, errors.Errorf("allocation for %s must be within [0, 100], got %s", asset, e.Percent)
		}

		index[asset] = len(normalized)
		normalized = append(normalized, AllocationEntry{Asset: asset, Percent: e.Percent})
		total = total.Add(e.Percent)
	}

	if total.Sub(decimal.NewFromInt(100)).Abs().GreaterThan(allocationEpsilon) {
		return Allocation{}, errors.Errorf("allocation must sum to 100%%, got %s", total)
	}

	return Allocation{entries: normalized, index: index}, nil
}

// Entries returns the target weights in insertion order.
func (a Allocation) Entries() []AllocationEntry {
	out := make([]AllocationEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Assets returns the asset symbols in insertion order.
func (a Allocation) Assets() []string {
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Asset
	}
	return out
}

// Percent returns the target weight for the asset, zero when absent.
func (a Allocation) Percent(asset string) decimal.Decimal {
	if i, ok := a.index[asset]; ok {
		return a.entries[i].Percent
	}
	return decimal.Zero
}

// Has reports whether the asset carries an explicit target weight.
func (a Allocation) Has(asset string) bool {
	_, ok := a.index[asset]
	return ok
}

// Len returns the number of explicit target weights.
func (a Allocation) Len() int {
	return len(a.entries)
}

// String renders the allocation as "BTC:60 ETH:40".
func (a Allocation) String() string {
	parts := make([]string, len(a.entries))
	for i, e := range a.entries {
		parts[i] = fmt.Sprintf("%s:%s", e.Asset, e.Percent)
	}
	return strings.Join(parts, " ")
}
