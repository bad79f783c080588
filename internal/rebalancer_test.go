package internal

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"github.com/vadiminshakov/kustodian/internal/services/pricer"
	"github.com/vadiminshakov/kustodian/internal/services/wallet"
)

type storeMock struct {
	settings     domain.RebalanceSettings
	snapshots    []domain.PortfolioSnapshot
	transactions []domain.Transaction
}

func (s *storeMock) Settings(_ context.Context, _ string) (domain.RebalanceSettings, error) {
	return s.settings, nil
}

func (s *storeMock) SaveSnapshot(_ context.Context, snapshot domain.PortfolioSnapshot) error {
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

func (s *storeMock) Snapshots(_ context.Context, _ string, _ int) ([]domain.PortfolioSnapshot, error) {
	return s.snapshots, nil
}

func (s *storeMock) SaveTransaction(_ context.Context, tx domain.Transaction) error {
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *storeMock) Transactions(_ context.Context, _ string, limit int) ([]domain.Transaction, error) {
	if len(s.transactions) > limit {
		return s.transactions[:limit], nil
	}
	return s.transactions, nil
}

type ledgerMock struct {
	transactions []domain.Transaction
	snapshots    []domain.PortfolioSnapshot
}

func (l *ledgerMock) AppendTransaction(tx domain.Transaction) error {
	l.transactions = append(l.transactions, tx)
	return nil
}

func (l *ledgerMock) AppendSnapshot(snapshot domain.PortfolioSnapshot) error {
	l.snapshots = append(l.snapshots, snapshot)
	return nil
}

type traderMock struct {
	placed  []domain.Pair
	failFor map[string]error
}

func (t *traderMock) PlaceOrder(_ context.Context, pair domain.Pair, _ domain.Side, quantity, priceHint decimal.Decimal) (domain.OrderResult, error) {
	if err, ok := t.failFor[pair.From]; ok {
		return domain.OrderResult{}, err
	}
	t.placed = append(t.placed, pair)
	return domain.OrderResult{
		Status: domain.OrderFilled,
		Price:  priceHint,
		Fee:    quantity.Mul(priceHint).Mul(decimal.NewFromFloat(0.002)),
	}, nil
}

func allocation(t *testing.T, entries ...domain.AllocationEntry) domain.Allocation {
	t.Helper()
	a, err := domain.NewAllocation(entries)
	require.NoError(t, err)
	return a
}

// fixture: 0.1 BTC at 60000 and 2 ETH at 2000, a 10000 USD portfolio split
// 60/40 against a 50/50 target.
func driftedFixture(t *testing.T, settings domain.RebalanceSettings) (*Rebalancer, *storeMock, *ledgerMock, *traderMock) {
	t.Helper()

	target := allocation(t,
		domain.AllocationEntry{Asset: "BTC", Percent: decimal.NewFromInt(50)},
		domain.AllocationEntry{Asset: "ETH", Percent: decimal.NewFromInt(50)},
	)

	prices := domain.PriceMap{
		"BTC": decimal.NewFromInt(60000),
		"ETH": decimal.NewFromInt(2000),
	}
	balances := map[string]domain.Balance{
		"BTC": domain.NewBalance(decimal.NewFromFloat(0.1), decimal.Zero, decimal.Zero),
		"ETH": domain.NewBalance(decimal.NewFromInt(2), decimal.Zero, decimal.Zero),
	}

	store := &storeMock{settings: settings}
	journal := &ledgerMock{}
	trd := &traderMock{}

	rb, err := NewRebalancer("growth", target,
		pricer.NewStaticPricer(prices),
		wallet.NewStaticWallet(balances),
		trd, store, journal, nil)
	require.NoError(t, err)

	return rb, store, journal, trd
}

func TestSuggestionsDriftedPortfolio(t *testing.T) {
	rb, _, _, _ := driftedFixture(t, domain.DefaultRebalanceSettings())

	s, err := rb.Suggestions(context.Background())
	require.NoError(t, err)

	assert.True(t, s.ShouldRebalance, "10%% drift exceeds the 5%% threshold")
	assert.True(t, decimal.NewFromInt(10).Equal(s.Deviations["BTC"]), "BTC dev %s", s.Deviations["BTC"])
	assert.True(t, decimal.NewFromInt(10).Equal(s.Deviations["ETH"]))

	require.Len(t, s.Trades, 2)

	// target order: sell 1000 USD of BTC, buy 1000 USD of ETH
	assert.Equal(t, "BTC", s.Trades[0].Instruction.Asset)
	assert.Equal(t, domain.SideSell, s.Trades[0].Instruction.Side)
	assert.True(t, decimal.NewFromInt(1000).Equal(s.Trades[0].Instruction.EstimatedValue))

	assert.Equal(t, "ETH", s.Trades[1].Instruction.Asset)
	assert.Equal(t, domain.SideBuy, s.Trades[1].Instruction.Side)
	assert.True(t, decimal.NewFromInt(1000).Equal(s.Trades[1].Instruction.EstimatedValue))

	// 1000 USD trades route to the pro venue
	for _, trade := range s.Trades {
		assert.Equal(t, domain.VenuePro, trade.Venue)
		assert.True(t, decimal.NewFromFloat(2.5).Equal(trade.VenueFee), "fee %s", trade.VenueFee)
	}

	assert.True(t, decimal.NewFromInt(2000).Equal(s.TotalTradeValue))
	// 2000 * 0.2%
	assert.True(t, decimal.NewFromInt(4).Equal(s.EstimatedCost), "cost %s", s.EstimatedCost)
	assert.True(t, decimal.NewFromInt(10000).Equal(s.Valuation.Total))
}

func TestSuggestionsBalancedPortfolio(t *testing.T) {
	target := allocation(t,
		domain.AllocationEntry{Asset: "BTC", Percent: decimal.NewFromInt(60)},
		domain.AllocationEntry{Asset: "ETH", Percent: decimal.NewFromInt(40)},
	)
	balances := map[string]domain.Balance{
		"BTC": domain.NewBalance(decimal.NewFromFloat(0.1), decimal.Zero, decimal.Zero),
		"ETH": domain.NewBalance(decimal.NewFromInt(2), decimal.Zero, decimal.Zero),
	}
	prices := domain.PriceMap{
		"BTC": decimal.NewFromInt(60000),
		"ETH": decimal.NewFromInt(2000),
	}

	rb, err := NewRebalancer("steady", target,
		pricer.NewStaticPricer(prices),
		wallet.NewStaticWallet(balances),
		&traderMock{}, &storeMock{settings: domain.DefaultRebalanceSettings()}, nil, nil)
	require.NoError(t, err)

	s, err := rb.Suggestions(context.Background())
	require.NoError(t, err)

	assert.False(t, s.ShouldRebalance)
	assert.Empty(t, s.Trades)
	assert.True(t, s.EstimatedCost.IsZero())
}

func TestSuggestionsEmptyWallet(t *testing.T) {
	target := allocation(t,
		domain.AllocationEntry{Asset: "BTC", Percent: decimal.NewFromInt(100)},
	)

	rb, err := NewRebalancer("empty", target,
		pricer.NewStaticPricer(nil),
		wallet.NewStaticWallet(map[string]domain.Balance{}),
		&traderMock{}, &storeMock{settings: domain.DefaultRebalanceSettings()}, nil, nil)
	require.NoError(t, err)

	s, err := rb.Suggestions(context.Background())
	require.NoError(t, err)

	// nothing to value means nothing to trade, even at 100% deviation
	assert.True(t, s.Valuation.Total.IsZero())
	assert.Empty(t, s.Trades)
	assert.True(t, s.ShouldRebalance, "an unfunded target still counts as drifted")
}

func TestSuggestionsAreIdempotent(t *testing.T) {
	rb, _, _, _ := driftedFixture(t, domain.DefaultRebalanceSettings())

	first, err := rb.Suggestions(context.Background())
	require.NoError(t, err)
	second, err := rb.Suggestions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Deviations, second.Deviations)
	assert.True(t, first.EstimatedCost.Equal(second.EstimatedCost))
}

func TestExecutePaperMode(t *testing.T) {
	settings := domain.DefaultRebalanceSettings()
	settings.PaperTrading = true
	rb, store, journal, trd := driftedFixture(t, settings)

	s, err := rb.Suggestions(context.Background())
	require.NoError(t, err)

	result, err := rb.Execute(context.Background(), s)
	require.NoError(t, err)

	assert.True(t, result.PaperTrading)
	assert.Len(t, result.Executed, 2)
	assert.Zero(t, result.Skipped)

	// paper mode never reaches the exchange
	assert.Empty(t, trd.placed)

	// both persistence paths saw every fill, marked as paper
	require.Len(t, store.transactions, 2)
	require.Len(t, journal.transactions, 2)
	for _, tx := range store.transactions {
		assert.Equal(t, domain.VenuePaper, tx.Venue)
		assert.Equal(t, domain.TransactionRebalance, tx.Type)
		assert.NotEmpty(t, tx.ID)
	}

	// 2000 USD at the 0.2% paper fee
	assert.True(t, decimal.NewFromInt(4).Equal(result.TotalCost), "cost %s", result.TotalCost)

	// a post-execution snapshot lands in the store
	assert.NotEmpty(t, store.snapshots)
}

func TestExecuteLiveMode(t *testing.T) {
	settings := domain.DefaultRebalanceSettings()
	settings.PaperTrading = false
	rb, store, _, trd := driftedFixture(t, settings)

	s, err := rb.Suggestions(context.Background())
	require.NoError(t, err)

	result, err := rb.Execute(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.PaperTrading)
	assert.Len(t, result.Executed, 2)
	require.Len(t, trd.placed, 2)
	assert.Equal(t, domain.USDTPair("BTC"), trd.placed[0])
	assert.Equal(t, domain.USDTPair("ETH"), trd.placed[1])

	for _, tx := range store.transactions {
		assert.NotEqual(t, domain.VenuePaper, tx.Venue)
	}
}

func TestExecuteContinuesPastFailures(t *testing.T) {
	settings := domain.DefaultRebalanceSettings()
	settings.PaperTrading = false
	rb, store, _, trd := driftedFixture(t, settings)
	trd.failFor = map[string]error{"BTC": errors.New("insufficient liquidity")}

	s, err := rb.Suggestions(context.Background())
	require.NoError(t, err)

	result, err := rb.Execute(context.Background(), s)
	require.NoError(t, err)

	// the BTC leg failed, the ETH leg still went through
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Executed, 1)
	assert.Equal(t, "ETH", result.Executed[0].Asset)
	require.Len(t, store.transactions, 1)
}

func TestTickRespectsAutoRebalanceOff(t *testing.T) {
	settings := domain.DefaultRebalanceSettings()
	settings.AutoRebalance = false
	rb, store, journal, trd := driftedFixture(t, settings)

	require.NoError(t, rb.Tick(context.Background()))

	// drift was detected but nothing may execute without auto-rebalance
	assert.Empty(t, trd.placed)
	assert.Empty(t, store.transactions)
	assert.Empty(t, journal.transactions)
	// the tick still recorded a snapshot
	assert.NotEmpty(t, store.snapshots)
}

func TestTickExecutesWhenAutoRebalanceOn(t *testing.T) {
	settings := domain.DefaultRebalanceSettings()
	settings.AutoRebalance = true
	rb, store, journal, _ := driftedFixture(t, settings)

	require.NoError(t, rb.Tick(context.Background()))

	assert.Len(t, store.transactions, 2)
	assert.Len(t, journal.transactions, 2)
}

func TestTakeSnapshot(t *testing.T) {
	rb, store, journal, _ := driftedFixture(t, domain.DefaultRebalanceSettings())

	snapshot, err := rb.TakeSnapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "growth", snapshot.Portfolio)
	assert.True(t, decimal.NewFromInt(10000).Equal(snapshot.TotalValue))
	require.Len(t, store.snapshots, 1)
	require.Len(t, journal.snapshots, 1)
}

func TestNewRebalancerValidation(t *testing.T) {
	target := allocation(t, domain.AllocationEntry{Asset: "BTC", Percent: decimal.NewFromInt(100)})

	_, err := NewRebalancer("", target, pricer.NewStaticPricer(nil), wallet.NewStaticWallet(nil), &traderMock{}, &storeMock{}, nil, nil)
	assert.Error(t, err)

	_, err = NewRebalancer("x", domain.Allocation{}, pricer.NewStaticPricer(nil), wallet.NewStaticWallet(nil), &traderMock{}, &storeMock{}, nil, nil)
	assert.Error(t, err)

	_, err = NewRebalancer("x", target, nil, wallet.NewStaticWallet(nil), &traderMock{}, &storeMock{}, nil, nil)
	assert.Error(t, err)

	_, err = NewRebalancer("x", target, pricer.NewStaticPricer(nil), wallet.NewStaticWallet(nil), &traderMock{}, nil, nil, nil)
	assert.Error(t, err)
}
