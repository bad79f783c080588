package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"github.com/vadiminshakov/kustodian/pkg/retrier"
	"go.uber.org/zap"
)

// BinancePricer quotes assets against USDT via the Binance public ticker API.
// No authentication is required for price data.
type BinancePricer struct {
	client  *binance.Client
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewBinancePricer creates a Binance-backed price oracle.
func NewBinancePricer(client *binance.Client, logger *zap.Logger) *BinancePricer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinancePricer{
		client:  client,
		retrier: retrier.New(retrier.WithMaxAttempts(3)),
		logger:  logger,
	}
}

// Prices fetches the full ticker list once and picks the requested symbols
// out of it. Assets without a USDT listing are omitted from the result.
func (p *BinancePricer) Prices(ctx context.Context, assets []string) (domain.PriceMap, error) {
	tickers, err := retrier.DoWithData(p.retrier, ctx, func(ctx context.Context) ([]*binance.SymbolPrice, error) {
		return p.client.NewListPricesService().Do(ctx)
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch binance tickers")
	}

	bySymbol := make(map[string]string, len(tickers))
	for _, t := range tickers {
		bySymbol[t.Symbol] = t.Price
	}

	prices := make(domain.PriceMap, len(assets))
	for _, asset := range assets {
		if price, ok := stablePrice(asset); ok {
			prices[asset] = price
			continue
		}
		raw, ok := bySymbol[domain.USDTPair(asset).Symbol()]
		if !ok {
			p.logger.Debug("no binance listing for asset", zap.String("asset", asset))
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil || !price.IsPositive() {
			p.logger.Warn("unusable binance price", zap.String("asset", asset), zap.String("raw", raw))
			continue
		}
		prices[asset] = price
	}

	return prices, nil
}
