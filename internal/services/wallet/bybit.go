package wallet

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"github.com/vadiminshakov/kustodian/pkg/retrier"
	"go.uber.org/zap"
)

// BybitWallet reads unified account balances from Bybit.
type BybitWallet struct {
	client  *bybit.Client
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewBybitWallet creates a Bybit-backed balance source.
func NewBybitWallet(client *bybit.Client, logger *zap.Logger) *BybitWallet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BybitWallet{
		client:  client,
		retrier: retrier.New(retrier.WithMaxAttempts(3)),
		logger:  logger,
	}
}

// Balances fetches the unified wallet and normalizes per-coin amounts.
func (w *BybitWallet) Balances(ctx context.Context) (map[string]domain.Balance, error) {
	res, err := retrier.DoWithData(w.retrier, ctx, func(ctx context.Context) (*bybit.V5GetWalletBalanceResponse, error) {
		return w.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5("UNIFIED"), nil)
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch bybit wallet balance")
	}
	if len(res.Result.List) == 0 {
		return map[string]domain.Balance{}, nil
	}

	coins := res.Result.List[0].Coin
	balances := make(map[string]domain.Balance, len(coins))
	for _, coin := range coins {
		total, errTotal := decimal.NewFromString(coin.WalletBalance)
		if errTotal != nil {
			w.logger.Warn("unparsable bybit balance", zap.String("asset", string(coin.Coin)))
			continue
		}
		locked := decimal.Zero
		if coin.Locked != "" {
			if parsed, err := decimal.NewFromString(coin.Locked); err == nil {
				locked = parsed
			}
		}

		available := total.Sub(locked)
		if available.IsNegative() {
			available = decimal.Zero
		}

		balance := domain.NewBalance(available, total, locked)
		if balance.IsZero() {
			continue
		}
		balances[string(coin.Coin)] = balance
	}

	return balances, nil
}
