// Package internal wires the engine stages into a per-portfolio rebalancer.
package internal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"github.com/vadiminshakov/kustodian/internal/services/deviation"
	"github.com/vadiminshakov/kustodian/internal/services/planner"
	"github.com/vadiminshakov/kustodian/internal/services/pricer"
	"github.com/vadiminshakov/kustodian/internal/services/trader"
	"github.com/vadiminshakov/kustodian/internal/services/valuation"
	"github.com/vadiminshakov/kustodian/internal/services/venue"
	"github.com/vadiminshakov/kustodian/internal/services/wallet"
	"go.uber.org/zap"
)

// estimatedCostRate approximates total execution cost when sizing a plan.
var estimatedCostRate = decimal.NewFromFloat(0.002)

// Store is the persistence collaborator the rebalancer reports to.
type Store interface {
	Settings(ctx context.Context, portfolio string) (domain.RebalanceSettings, error)
	SaveSnapshot(ctx context.Context, snapshot domain.PortfolioSnapshot) error
	Snapshots(ctx context.Context, portfolio string, days int) ([]domain.PortfolioSnapshot, error)
	SaveTransaction(ctx context.Context, tx domain.Transaction) error
	Transactions(ctx context.Context, portfolio string, limit int) ([]domain.Transaction, error)
}

// Ledger is the append-only journal executed trades are streamed to.
type Ledger interface {
	AppendTransaction(tx domain.Transaction) error
	AppendSnapshot(snapshot domain.PortfolioSnapshot) error
}

// Rebalancer sequences valuation, deviation analysis, trade planning, venue
// selection and execution for one portfolio. It holds no mutable state
// between calls: balances and prices are fetched fresh per pass, so
// independent portfolios can run concurrently.
type Rebalancer struct {
	name    string
	target  domain.Allocation
	pricer  pricer.Pricer
	wallet  wallet.Wallet
	trader  trader.Trader
	planner *planner.Planner
	venue   venue.Selector
	store   Store
	ledger  Ledger
	logger  *zap.Logger
}

// NewRebalancer builds a rebalancer for one portfolio.
func NewRebalancer(
	name string,
	target domain.Allocation,
	pricerSvc pricer.Pricer,
	walletSvc wallet.Wallet,
	traderSvc trader.Trader,
	store Store,
	ledger Ledger,
	logger *zap.Logger,
) (*Rebalancer, error) {
	if name == "" {
		return nil, errors.New("portfolio name is required")
	}
	if target.Len() == 0 {
		return nil, errors.New("target allocation is required")
	}
	if pricerSvc == nil || walletSvc == nil || traderSvc == nil {
		return nil, errors.New("pricer, wallet and trader are required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Rebalancer{
		name:    name,
		target:  target,
		pricer:  pricerSvc,
		wallet:  walletSvc,
		trader:  traderSvc,
		planner: planner.New(logger),
		venue:   venue.Select,
		store:   store,
		ledger:  ledger,
		logger:  logger.With(zap.String("portfolio", name)),
	}, nil
}

// Name returns the portfolio name.
func (r *Rebalancer) Name() string { return r.name }

// Target returns the portfolio's target allocation.
func (r *Rebalancer) Target() domain.Allocation { return r.target }

// PlannedTrade pairs an instruction with its venue routing.
type PlannedTrade struct {
	Instruction domain.TradeInstruction
	Venue       domain.Venue
	VenueFee    decimal.Decimal
}

// Suggestions is a full rebalance recommendation. Producing one has no side
// effects; nothing is executed or persisted.
type Suggestions struct {
	Portfolio       string
	ShouldRebalance bool
	Threshold       decimal.Decimal
	Deviations      map[string]decimal.Decimal
	Trades          []PlannedTrade
	EstimatedCost   decimal.Decimal
	TotalTradeValue decimal.Decimal
	Valuation       valuation.Valuation
	Settings        domain.RebalanceSettings
}

// Suggestions runs one analysis pass: fetch balances and prices, value the
// portfolio, measure drift against the target, and size the trades that
// would close it. Missing prices degrade the result (assets simply are not
// valued or sized); they never fail the pass.
func (r *Rebalancer) Suggestions(ctx context.Context) (*Suggestions, error) {
	settings, err := r.store.Settings(ctx, r.name)
	if err != nil {
		return nil, errors.Wrap(err, "load rebalance settings")
	}

	balances, err := r.wallet.Balances(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch balances")
	}

	prices, err := r.pricer.Prices(ctx, priceUniverse(balances, r.target))
	if err != nil {
		return nil, errors.Wrap(err, "fetch prices")
	}

	val := valuation.Value(balances, prices)
	if len(val.Unpriced) > 0 {
		r.logger.Warn("assets skipped in valuation, no usable price", zap.Strings("assets", val.Unpriced))
	}

	devs := deviation.Deviations(val.CurrentPercents(), r.target)
	instructions := r.planner.Plan(val, prices, r.target, settings.MinTradeValue)

	trades := make([]PlannedTrade, 0, len(instructions))
	estimatedCost := decimal.Zero
	totalTradeValue := decimal.Zero
	for _, instr := range instructions {
		quote := r.venue(instr.EstimatedValue)
		trades = append(trades, PlannedTrade{Instruction: instr, Venue: quote.Venue, VenueFee: quote.Fee})
		estimatedCost = estimatedCost.Add(instr.EstimatedValue.Mul(estimatedCostRate))
		totalTradeValue = totalTradeValue.Add(instr.EstimatedValue)
	}

	return &Suggestions{
		Portfolio:       r.name,
		ShouldRebalance: deviation.ShouldRebalance(devs, settings.Threshold),
		Threshold:       settings.Threshold,
		Deviations:      devs,
		Trades:          trades,
		EstimatedCost:   estimatedCost,
		TotalTradeValue: totalTradeValue,
		Valuation:       val,
		Settings:        settings,
	}, nil
}

// ExecutionResult reports what a rebalance run actually did. Partial
// execution is a success: failed instructions are skipped, not rolled back.
type ExecutionResult struct {
	Executed     []domain.Transaction
	Skipped      int
	TotalCost    decimal.Decimal
	PaperTrading bool
}

// Execute places the suggested trades one by one. A failure on a single
// instruction is logged and skipped; the batch continues. Only fills become
// ledger entries. Afterwards a fresh snapshot is taken so the history
// reflects state after the trades (in paper mode real balances are
// unchanged, a known simulation limitation).
func (r *Rebalancer) Execute(ctx context.Context, suggestions *Suggestions) (*ExecutionResult, error) {
	if suggestions == nil {
		return nil, errors.New("nothing to execute")
	}

	paper := suggestions.Settings.PaperTrading
	result := &ExecutionResult{TotalCost: decimal.Zero, PaperTrading: paper}

	for _, planned := range suggestions.Trades {
		instr := planned.Instruction

		orderResult, err := r.placeOrder(ctx, instr, paper)
		if err != nil {
			r.logger.Error("trade failed, continuing with remaining instructions",
				zap.String("asset", instr.Asset),
				zap.String("side", instr.Side.String()),
				zap.Error(err))
			result.Skipped++
			continue
		}
		if !orderResult.Filled() {
			r.logger.Warn("order not filled, skipping",
				zap.String("asset", instr.Asset),
				zap.String("status", string(orderResult.Status)))
			result.Skipped++
			continue
		}

		tx := domain.Transaction{
			ID:        uuid.New().String(),
			Portfolio: r.name,
			Asset:     instr.Asset,
			Type:      domain.TransactionRebalance,
			Side:      instr.Side,
			Quantity:  instr.Quantity,
			Price:     orderResult.Price,
			Fee:       orderResult.Fee,
			Venue:     planned.Venue,
			Timestamp: time.Now().UTC(),
		}
		if paper {
			tx.Venue = domain.VenuePaper
		}

		if err := r.store.SaveTransaction(ctx, tx); err != nil {
			r.logger.Error("failed to persist transaction", zap.String("id", tx.ID), zap.Error(err))
		}
		if r.ledger != nil {
			if err := r.ledger.AppendTransaction(tx); err != nil {
				r.logger.Error("failed to journal transaction", zap.String("id", tx.ID), zap.Error(err))
			}
		}

		result.Executed = append(result.Executed, tx)
		result.TotalCost = result.TotalCost.Add(tx.Fee)
	}

	if _, err := r.TakeSnapshot(ctx); err != nil {
		r.logger.Warn("post-rebalance snapshot failed", zap.Error(err))
	}

	r.logger.Info("rebalance executed",
		zap.Int("trades", len(result.Executed)),
		zap.Int("skipped", result.Skipped),
		zap.String("total_cost", result.TotalCost.String()),
		zap.Bool("paper", paper))

	return result, nil
}

func (r *Rebalancer) placeOrder(ctx context.Context, instr domain.TradeInstruction, paper bool) (domain.OrderResult, error) {
	if paper {
		// paper fills never leave the process; synthesize at the sizing price
		fee := instr.EstimatedValue.Mul(estimatedCostRate)
		return domain.OrderResult{Status: domain.OrderFilled, Price: instr.Price, Fee: fee}, nil
	}
	return r.trader.PlaceOrder(ctx, domain.USDTPair(instr.Asset), instr.Side, instr.Quantity, instr.Price)
}

// TakeSnapshot values the portfolio right now and appends the snapshot to
// the store and the journal.
func (r *Rebalancer) TakeSnapshot(ctx context.Context) (*domain.PortfolioSnapshot, error) {
	balances, err := r.wallet.Balances(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch balances")
	}
	prices, err := r.pricer.Prices(ctx, priceUniverse(balances, r.target))
	if err != nil {
		return nil, errors.Wrap(err, "fetch prices")
	}

	val := valuation.Value(balances, prices)
	snapshot := domain.NewPortfolioSnapshot(r.name, val.Quantities(), val.Prices(), val.Total, time.Now().UTC())

	if err := r.store.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, errors.Wrap(err, "persist snapshot")
	}
	if r.ledger != nil {
		if err := r.ledger.AppendSnapshot(snapshot); err != nil {
			r.logger.Warn("failed to journal snapshot", zap.Error(err))
		}
	}

	return &snapshot, nil
}

// Run records snapshots on the given interval until ctx is cancelled. It
// never trades; trading passes happen on the rebalance schedule via Tick.
// The dense snapshot history is what feeds the risk metrics.
func (r *Rebalancer) Run(ctx context.Context, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	r.logger.Info("snapshot loop started", zap.Duration("poll_interval", pollInterval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("snapshot loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.TakeSnapshot(ctx); err != nil {
				r.logger.Error("snapshot failed", zap.Error(err))
			}
		}
	}
}

// Tick runs a single check-and-maybe-execute pass.
func (r *Rebalancer) Tick(ctx context.Context) error {
	if _, err := r.TakeSnapshot(ctx); err != nil {
		r.logger.Warn("snapshot failed", zap.Error(err))
	}

	suggestions, err := r.Suggestions(ctx)
	if err != nil {
		return err
	}

	if !suggestions.ShouldRebalance {
		r.logger.Debug("within threshold, no action",
			zap.String("max_deviation", deviation.Max(suggestions.Deviations).String()))
		return nil
	}

	if !suggestions.Settings.AutoRebalance {
		r.logger.Info("rebalance suggested but auto-rebalance is off",
			zap.String("max_deviation", deviation.Max(suggestions.Deviations).String()),
			zap.Int("trades", len(suggestions.Trades)))
		return nil
	}

	_, err = r.Execute(ctx, suggestions)
	return err
}

// priceUniverse is the set of assets a pass needs prices for: everything
// held plus everything targeted, in a stable order.
func priceUniverse(balances map[string]domain.Balance, target domain.Allocation) []string {
	seen := make(map[string]struct{}, len(balances)+target.Len())
	var assets []string

	for _, asset := range target.Assets() {
		if _, ok := seen[asset]; !ok {
			seen[asset] = struct{}{}
			assets = append(assets, asset)
		}
	}
	for asset := range balances {
		if _, ok := seen[asset]; !ok {
			seen[asset] = struct{}{}
			assets = append(assets, asset)
		}
	}

	return assets
}
