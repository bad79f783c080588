package domain

import "fmt"

// Pair is a trading pair on the execution venue.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}

// USDTPair builds the default quote pair used for rebalance orders.
func USDTPair(asset string) Pair {
	return Pair{From: asset, To: "USDT"}
}
