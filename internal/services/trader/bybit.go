package trader

import (
	"context"

	"github.com/google/uuid"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

// BybitTrader places spot market orders on Bybit.
type BybitTrader struct {
	client *bybit.Client
}

// NewBybitTrader creates a Bybit execution collaborator.
func NewBybitTrader(client *bybit.Client) *BybitTrader {
	return &BybitTrader{client: client}
}

// PlaceOrder submits a V5 spot market order. Bybit acknowledges market
// orders without fill details in the create response, so a successful
// submission reports the sizing price as the fill price and the pro-venue
// taker fee as the cost estimate.
func (t *BybitTrader) PlaceOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity, priceHint decimal.Decimal) (domain.OrderResult, error) {
	orderSide := bybit.SideBuy
	if side == domain.SideSell {
		orderSide = bybit.SideSell
	}

	orderLinkID := "kust-" + uuid.New().String()
	_, err := t.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    "spot",
		Symbol:      bybit.SymbolV5(pair.Symbol()),
		Side:        orderSide,
		OrderType:   bybit.OrderTypeMarket,
		Qty:         quantity.RoundFloor(4).String(),
		OrderLinkID: &orderLinkID,
	})
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "place %s order for %s", side, pair.Symbol())
	}

	return domain.OrderResult{
		Status: domain.OrderFilled,
		Price:  priceHint,
		Fee:    quantity.Mul(priceHint).Mul(paperFeeRate),
	}, nil
}
