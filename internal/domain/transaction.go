package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

// TransactionRebalance marks a leg executed by a rebalance pass; the trade
// direction lives in Side.
const TransactionRebalance TransactionType = "rebalance"

// Venue is the execution venue a trade was routed to.
type Venue string

const (
	// VenueRetail is the convenience venue: wide spread, no explicit fee.
	VenueRetail Venue = "retail"
	// VenuePro is the exchange venue: tight spread plus an explicit fee.
	VenuePro Venue = "pro"
	// VenuePaper marks simulated fills that never reached an exchange.
	VenuePaper Venue = "paper"
)

// Transaction is an append-only ledger entry recorded after a trade executed,
// for real or simulated. Owned by the persistence layer; the engine only
// produces these values and hands them off.
type Transaction struct {
	ID        string          `json:"id"`
	Portfolio string          `json:"portfolio"`
	Asset     string          `json:"asset"`
	Type      TransactionType `json:"type"`
	Side      Side            `json:"side"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Fee       decimal.Decimal `json:"fee"`
	Venue     Venue           `json:"venue"`
	Timestamp time.Time       `json:"ts"`
}

// Value returns the USD value of the transaction.
func (t Transaction) Value() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}
