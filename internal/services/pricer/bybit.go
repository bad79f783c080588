package pricer

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"github.com/vadiminshakov/kustodian/pkg/retrier"
	"go.uber.org/zap"
)

// BybitPricer quotes assets against USDT via the Bybit V5 spot ticker API.
type BybitPricer struct {
	client  *bybit.Client
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewBybitPricer creates a Bybit-backed price oracle.
func NewBybitPricer(client *bybit.Client, logger *zap.Logger) *BybitPricer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BybitPricer{
		client:  client,
		retrier: retrier.New(retrier.WithMaxAttempts(3)),
		logger:  logger,
	}
}

// Prices queries one ticker per asset. Assets Bybit does not list, or whose
// ticker call fails, are omitted rather than failing the whole batch.
func (p *BybitPricer) Prices(ctx context.Context, assets []string) (domain.PriceMap, error) {
	prices := make(domain.PriceMap, len(assets))

	for _, asset := range assets {
		if price, ok := stablePrice(asset); ok {
			prices[asset] = price
			continue
		}

		symbol := bybit.SymbolV5(domain.USDTPair(asset).Symbol())
		result, err := retrier.DoWithData(p.retrier, ctx, func(ctx context.Context) (*bybit.V5GetTickersResponse, error) {
			return p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
				Category: "spot",
				Symbol:   &symbol,
			})
		})
		if err != nil {
			p.logger.Warn("bybit ticker unavailable", zap.String("asset", asset), zap.Error(err))
			continue
		}
		if len(result.Result.Spot.List) == 0 {
			p.logger.Debug("no bybit listing for asset", zap.String("asset", asset))
			continue
		}

		price, err := decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
		if err != nil || !price.IsPositive() {
			p.logger.Warn("unusable bybit price", zap.String("asset", asset))
			continue
		}
		prices[asset] = price
	}

	return prices, nil
}
