package domain

import "github.com/shopspring/decimal"

// OrderStatus is the execution state an order ended in.
type OrderStatus string

const (
	OrderFilled   OrderStatus = "filled"
	OrderRejected OrderStatus = "rejected"
	OrderPending  OrderStatus = "pending"
)

// OrderResult is what the execution collaborator reports back for a placed
// order. Anything other than OrderFilled is treated as not executed.
type OrderResult struct {
	Status OrderStatus
	// Price the order filled at; the requested price for paper fills.
	Price decimal.Decimal
	// Fee charged by the venue in USD.
	Fee decimal.Decimal
}

// Filled reports whether the order actually executed.
func (r OrderResult) Filled() bool {
	return r.Status == OrderFilled
}
