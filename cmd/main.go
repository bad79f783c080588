// Command kustodian runs the portfolio rebalancing service. It values the
// configured portfolios on an exchange (Binance, Bybit) or a static price
// table, suggests trades when allocations drift, and optionally executes
// them on a calendar schedule.
//
// Usage:
//
//	kustodian --config config.yaml
//	kustodian --allocation BTC:60,ETH:40
//	kustodian --setup
//	kustodian --config config.yaml --suggest
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adshao/go-binance/v2"
	"github.com/hirokisan/bybit/v2"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/kustodian/config"
	"github.com/vadiminshakov/kustodian/internal"
	"github.com/vadiminshakov/kustodian/internal/scheduler"
	"github.com/vadiminshakov/kustodian/internal/services/pricer"
	"github.com/vadiminshakov/kustodian/internal/services/trader"
	"github.com/vadiminshakov/kustodian/internal/services/wallet"
	"github.com/vadiminshakov/kustodian/internal/setup"
	"github.com/vadiminshakov/kustodian/internal/storage/ledger"
	"github.com/vadiminshakov/kustodian/internal/storage/sqlite"
	"github.com/vadiminshakov/kustodian/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Setup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		cfg, err = config.FromFile("config.gen.yaml")
		if err != nil {
			log.Fatal(err)
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return err
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	journal, err := ledger.NewJournal(cfg.WALDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	pricerSvc, walletSvc, traderSvc, err := buildPlatform(cfg.Platform, logger)
	if err != nil {
		return err
	}

	rebalancers := make(map[string]*internal.Rebalancer, len(cfg.Portfolios))
	for _, p := range cfg.Portfolios {
		if err := store.SavePortfolio(ctx, p.Name, p.Allocation); err != nil {
			return err
		}
		if err := store.SaveSettings(ctx, p.Name, p.Settings); err != nil {
			return err
		}

		rb, err := internal.NewRebalancer(p.Name, p.Allocation, pricerSvc, walletSvc, traderSvc, store, journal, logger)
		if err != nil {
			return err
		}
		rebalancers[p.Name] = rb
	}

	if cfg.SuggestOnly {
		return printSuggestions(ctx, rebalancers)
	}

	sched := scheduler.New(logger)
	for _, p := range cfg.Portfolios {
		if err := sched.Add(ctx, p.Settings.Frequency, rebalanceJob{rebalancers[p.Name]}); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, rb := range rebalancers {
		rb := rb
		g.Go(func() error {
			return rb.Run(ctx, cfg.PollInterval)
		})
	}

	server := web.NewServer(cfg.ListenAddr, rebalancers, journal, logger)
	g.Go(func() error {
		return server.Start(ctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildPlatform wires the price, balance and order implementations for the
// configured exchange. The static platform trades on paper only.
func buildPlatform(platform string, logger *zap.Logger) (pricer.Pricer, wallet.Wallet, trader.Trader, error) {
	switch platform {
	case "binance":
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, nil, nil, fmt.Errorf("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
		client := binance.NewClient(apiKey, apiSecret)
		return pricer.NewBinancePricer(client, logger), wallet.NewBinanceWallet(client, logger), trader.NewBinanceTrader(client), nil
	case "bybit":
		apiKey := os.Getenv("BYBIT_API_KEY")
		apiSecret := os.Getenv("BYBIT_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, nil, nil, fmt.Errorf("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
		client := bybit.NewClient().WithAuth(apiKey, apiSecret)
		return pricer.NewBybitPricer(client, logger), wallet.NewBybitWallet(client, logger), trader.NewBybitTrader(client), nil
	case "static":
		return pricer.NewStaticPricer(nil), wallet.NewStaticWallet(nil), trader.NewPaperTrader(logger), nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported platform %q", platform)
	}
}

// rebalanceJob adapts a rebalancer to the scheduler's job interface.
type rebalanceJob struct {
	rb *internal.Rebalancer
}

func (j rebalanceJob) Name() string { return j.rb.Name() }

func (j rebalanceJob) Run(ctx context.Context) error { return j.rb.Tick(ctx) }

func printSuggestions(ctx context.Context, rebalancers map[string]*internal.Rebalancer) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	for name, rb := range rebalancers {
		suggestions, err := rb.Suggestions(ctx)
		if err != nil {
			return fmt.Errorf("portfolio %s: %w", name, err)
		}
		if err := enc.Encode(suggestions); err != nil {
			return err
		}
	}
	return nil
}
