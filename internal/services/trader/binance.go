package trader

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
)

// BinanceTrader places spot market orders on Binance.
type BinanceTrader struct {
	client *binance.Client
}

// NewBinanceTrader creates a Binance execution collaborator.
func NewBinanceTrader(client *binance.Client) *BinanceTrader {
	return &BinanceTrader{client: client}
}

// PlaceOrder submits a market order and reports the fill from the response.
// The price hint is ignored; market orders fill at market. Quantity is
// floored to 4 decimals to satisfy common lot-size filters.
func (t *BinanceTrader) PlaceOrder(ctx context.Context, pair domain.Pair, side domain.Side, quantity, _ decimal.Decimal) (domain.OrderResult, error) {
	orderSide := binance.SideTypeBuy
	if side == domain.SideSell {
		orderSide = binance.SideTypeSell
	}

	res, err := t.client.NewCreateOrderService().
		Symbol(pair.Symbol()).
		Side(orderSide).
		Type(binance.OrderTypeMarket).
		Quantity(quantity.RoundFloor(4).String()).
		NewClientOrderID("kust-" + uuid.New().String()).
		Do(ctx)
	if err != nil {
		return domain.OrderResult{}, errors.Wrapf(err, "place %s order for %s", side, pair.Symbol())
	}

	if res.Status != binance.OrderStatusTypeFilled {
		return domain.OrderResult{Status: domain.OrderPending}, nil
	}

	price, fee := fillStats(res.Fills)
	return domain.OrderResult{Status: domain.OrderFilled, Price: price, Fee: fee}, nil
}

// fillStats averages the fill price over partial fills, weighted by
// quantity, and sums commissions.
func fillStats(fills []*binance.Fill) (price, fee decimal.Decimal) {
	totalQty := decimal.Zero
	totalValue := decimal.Zero

	for _, f := range fills {
		p, errP := decimal.NewFromString(f.Price)
		q, errQ := decimal.NewFromString(f.Quantity)
		if errP != nil || errQ != nil {
			continue
		}
		totalQty = totalQty.Add(q)
		totalValue = totalValue.Add(p.Mul(q))
		if c, err := decimal.NewFromString(f.Commission); err == nil {
			fee = fee.Add(c)
		}
	}

	if totalQty.IsPositive() {
		price = totalValue.Div(totalQty)
	}
	return price, fee
}
