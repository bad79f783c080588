// Package wallet provides account balance sources. Every implementation
// normalizes the exchange's own balance shape into domain.Balance at this
// boundary, so downstream code deals with exactly one shape.
package wallet

import (
	"context"

	"github.com/vadiminshakov/kustodian/internal/domain"
)

// Wallet returns the account's per-asset holdings. Assets with an entirely
// zero balance are omitted to keep the map clean.
type Wallet interface {
	Balances(ctx context.Context) (map[string]domain.Balance, error)
}
