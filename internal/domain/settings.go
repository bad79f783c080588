package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Frequency is how often the scheduler re-checks a portfolio.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// Valid reports whether the frequency is one of the known values.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly:
		return true
	}
	return false
}

// RebalanceSettings is the per-portfolio rebalance policy. Mutable,
// last-write-wins; owned by the persistence layer.
type RebalanceSettings struct {
	// Frequency of scheduled checks when AutoRebalance is on.
	Frequency Frequency `json:"frequency"`
	// Threshold max allowed deviation in percent points before a
	// rebalance is suggested. Strictly-greater comparison.
	Threshold decimal.Decimal `json:"threshold"`
	// MinTradeValue USD floor under which a trade is not worth placing.
	MinTradeValue decimal.Decimal `json:"min_trade_value"`
	// AutoRebalance executes suggestions without confirmation.
	AutoRebalance bool `json:"auto_rebalance"`
	// PaperTrading simulates fills instead of placing exchange orders.
	PaperTrading bool `json:"paper_trading"`
}

// DefaultRebalanceSettings mirrors the platform defaults: weekly checks,
// 5% threshold, 10 USD minimum trade, manual paper mode.
func DefaultRebalanceSettings() RebalanceSettings {
	return RebalanceSettings{
		Frequency:     FrequencyWeekly,
		Threshold:     decimal.NewFromInt(5),
		MinTradeValue: decimal.NewFromInt(10),
		AutoRebalance: false,
		PaperTrading:  true,
	}
}

// Validate rejects structurally broken settings.
func (s RebalanceSettings) Validate() error {
	if !s.Frequency.Valid() {
		return errors.Errorf("unknown rebalance frequency %q", s.Frequency)
	}
	if s.Threshold.IsNegative() {
		return errors.New("rebalance threshold must not be negative")
	}
	if s.MinTradeValue.IsNegative() {
		return errors.New("min trade value must not be negative")
	}
	return nil
}
