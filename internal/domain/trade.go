package domain

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Side is the direction of a trade instruction.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

const (
	sideStringBuy  = "buy"
	sideStringSell = "sell"
)

// String returns the string representation of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return sideStringBuy
	case SideSell:
		return sideStringSell
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the side as "buy" or "sell" so journal entries and API
// responses stay readable.
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes the string form produced by MarshalJSON.
func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decode side")
	}
	switch raw {
	case sideStringBuy:
		*s = SideBuy
	case sideStringSell:
		*s = SideSell
	default:
		return errors.Errorf("unknown side %q", raw)
	}
	return nil
}

// TradeInstruction is one step of a rebalance plan: how much of an asset to
// buy or sell to move the current weight to the target weight. It is a
// transient value; it becomes a Transaction only after execution.
type TradeInstruction struct {
	// Asset base currency symbol.
	Asset string
	// Side buy or sell.
	Side Side
	// Quantity asset-native amount, always positive.
	Quantity decimal.Decimal
	// EstimatedValue USD value of the trade, always positive.
	EstimatedValue decimal.Decimal
	// CurrentPercent weight of the asset before the trade.
	CurrentPercent decimal.Decimal
	// TargetPercent weight the trade steers towards.
	TargetPercent decimal.Decimal
	// Price USD price the sizing was computed at.
	Price decimal.Decimal
}

// String returns a human-readable representation.
func (t *TradeInstruction) String() string {
	return fmt.Sprintf("%s %s %s (~%s USD, %s%% -> %s%%)",
		t.Side, t.Quantity, t.Asset, t.EstimatedValue, t.CurrentPercent.Round(2), t.TargetPercent.Round(2))
}
