package trader

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"go.uber.org/zap"
)

// paperFeeRate approximates the pro venue's 0.2% taker fee.
var paperFeeRate = decimal.NewFromFloat(0.002)

// PaperTrader simulates fills without touching an exchange. Every order
// fills instantly and completely at the price the instruction was sized at.
// Balances are not emulated: a later valuation pass still reads the real
// (unchanged) wallet, which is a known limitation of paper mode.
type PaperTrader struct {
	mu     sync.Mutex
	logger *zap.Logger
	fills  []domain.OrderResult
}

// NewPaperTrader creates a paper execution collaborator.
func NewPaperTrader(logger *zap.Logger) *PaperTrader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaperTrader{logger: logger}
}

// PlaceOrder synthesizes a fill at priceHint with the flat paper fee.
func (t *PaperTrader) PlaceOrder(_ context.Context, pair domain.Pair, side domain.Side, quantity, priceHint decimal.Decimal) (domain.OrderResult, error) {
	if !quantity.IsPositive() {
		return domain.OrderResult{}, errors.Errorf("order quantity must be positive, got %s", quantity)
	}
	if !priceHint.IsPositive() {
		return domain.OrderResult{}, errors.Errorf("paper fill needs a positive price, got %s", priceHint)
	}

	result := domain.OrderResult{
		Status: domain.OrderFilled,
		Price:  priceHint,
		Fee:    quantity.Mul(priceHint).Mul(paperFeeRate),
	}

	t.mu.Lock()
	t.fills = append(t.fills, result)
	t.mu.Unlock()

	t.logger.Info("paper fill",
		zap.String("pair", pair.String()),
		zap.String("side", side.String()),
		zap.String("quantity", quantity.String()),
		zap.String("price", priceHint.String()),
		zap.String("fee", result.Fee.String()))

	return result, nil
}

// Fills returns all simulated fills so far.
func (t *PaperTrader) Fills() []domain.OrderResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.OrderResult, len(t.fills))
	copy(out, t.fills)
	return out
}
