package wallet

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"github.com/vadiminshakov/kustodian/pkg/retrier"
	"go.uber.org/zap"
)

// BinanceWallet reads spot account balances from Binance.
type BinanceWallet struct {
	client  *binance.Client
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewBinanceWallet creates a Binance-backed balance source.
func NewBinanceWallet(client *binance.Client, logger *zap.Logger) *BinanceWallet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinanceWallet{
		client:  client,
		retrier: retrier.New(retrier.WithMaxAttempts(3)),
		logger:  logger,
	}
}

// Balances fetches the spot account and normalizes free/locked amounts.
// Individual unparsable entries are skipped with a warning, not fatal.
func (w *BinanceWallet) Balances(ctx context.Context) (map[string]domain.Balance, error) {
	account, err := retrier.DoWithData(w.retrier, ctx, func(ctx context.Context) (*binance.Account, error) {
		return w.client.NewGetAccountService().Do(ctx)
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch binance account")
	}

	balances := make(map[string]domain.Balance, len(account.Balances))
	for _, b := range account.Balances {
		free, errFree := decimal.NewFromString(b.Free)
		locked, errLocked := decimal.NewFromString(b.Locked)
		if errFree != nil || errLocked != nil {
			w.logger.Warn("unparsable binance balance", zap.String("asset", b.Asset))
			continue
		}

		balance := domain.NewBalance(free, decimal.Zero, locked)
		if balance.IsZero() {
			continue
		}
		balances[b.Asset] = balance
	}

	return balances, nil
}
