package planner

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"github.com/vadiminshakov/kustodian/internal/services/valuation"
)

var minTrade = decimal.NewFromInt(10)

func allocation(t *testing.T, entries ...domain.AllocationEntry) domain.Allocation {
	t.Helper()
	a, err := domain.NewAllocation(entries)
	require.NoError(t, err)
	return a
}

func value(t *testing.T, holdings map[string]float64, prices domain.PriceMap) valuation.Valuation {
	t.Helper()
	balances := make(map[string]domain.Balance, len(holdings))
	for asset, qty := range holdings {
		balances[asset] = domain.NewBalance(decimal.NewFromFloat(qty), decimal.Zero, decimal.Zero)
	}
	return valuation.Value(balances, prices)
}

func TestPlanSixtyFortyToFiftyFifty(t *testing.T) {
	prices := domain.PriceMap{
		"BTC": decimal.NewFromInt(60000),
		"ETH": decimal.NewFromInt(2000),
	}
	// 0.1 BTC = 6000, 2 ETH = 4000, total 10000, currently 60/40
	val := value(t, map[string]float64{"BTC": 0.1, "ETH": 2}, prices)
	target := allocation(t,
		domain.AllocationEntry{Asset: "BTC", Percent: decimal.NewFromInt(50)},
		domain.AllocationEntry{Asset: "ETH", Percent: decimal.NewFromInt(50)},
	)

	plan := New(nil).Plan(val, prices, target, minTrade)

	require.Len(t, plan, 2)

	// target insertion order: BTC first
	assert.Equal(t, "BTC", plan[0].Asset)
	assert.Equal(t, domain.SideSell, plan[0].Side)
	assert.True(t, decimal.NewFromInt(1000).Equal(plan[0].EstimatedValue), "sell value %s", plan[0].EstimatedValue)

	assert.Equal(t, "ETH", plan[1].Asset)
	assert.Equal(t, domain.SideBuy, plan[1].Side)
	assert.True(t, decimal.NewFromInt(1000).Equal(plan[1].EstimatedValue), "buy value %s", plan[1].EstimatedValue)
	assert.True(t, decimal.NewFromFloat(0.5).Equal(plan[1].Quantity), "buy qty %s", plan[1].Quantity)
}

func TestPlanBalancedPortfolioIsEmpty(t *testing.T) {
	prices := domain.PriceMap{
		"BTC": decimal.NewFromInt(50000),
		"ETH": decimal.NewFromInt(2500),
	}
	// 0.1 BTC = 5000, 2 ETH = 5000, exactly 50/50
	val := value(t, map[string]float64{"BTC": 0.1, "ETH": 2}, prices)
	target := allocation(t,
		domain.AllocationEntry{Asset: "BTC", Percent: decimal.NewFromInt(50)},
		domain.AllocationEntry{Asset: "ETH", Percent: decimal.NewFromInt(50)},
	)

	plan := New(nil).Plan(val, prices, target, minTrade)
	assert.Empty(t, plan, "a balanced portfolio plans no trades")
}

func TestPlanZeroTotalValue(t *testing.T) {
	val := value(t, nil, nil)
	target := allocation(t,
		domain.AllocationEntry{Asset: "BTC", Percent: decimal.NewFromInt(100)},
	)

	// percent gap is 100 but the value gap is zero, below min trade value
	plan := New(nil).Plan(val, domain.PriceMap{"BTC": decimal.NewFromInt(50000)}, target, minTrade)
	assert.Empty(t, plan)
}

func TestPlanDropsDustTrades(t *testing.T) {
	prices := domain.PriceMap{
		"BTC": decimal.NewFromInt(500),
		"ETH": decimal.NewFromInt(200),
	}
	// total 100 USD, 52/48 vs 50/50: 2 USD gaps are under the 10 USD floor
	val := value(t, map[string]float64{"BTC": 0.104, "ETH": 0.24}, prices)
	target := allocation(t,
		domain.AllocationEntry{Asset: "BTC", Percent: decimal.NewFromInt(50)},
		domain.AllocationEntry{Asset: "ETH", Percent: decimal.NewFromInt(50)},
	)

	plan := New(nil).Plan(val, prices, target, minTrade)
	assert.Empty(t, plan)
}

func TestPlanSkipsUnpricedAsset(t *testing.T) {
	prices := domain.PriceMap{
		"BTC": decimal.NewFromInt(50000),
	}
	// SOL is targeted but has no price, its trade cannot be sized
	val := value(t, map[string]float64{"BTC": 0.2}, prices)
	target := allocation(t,
		domain.AllocationEntry{Asset: "BTC", Percent: decimal.NewFromInt(50)},
		domain.AllocationEntry{Asset: "SOL", Percent: decimal.NewFromInt(50)},
	)

	plan := New(nil).Plan(val, prices, target, minTrade)

	require.Len(t, plan, 1)
	assert.Equal(t, "BTC", plan[0].Asset)
	assert.Equal(t, domain.SideSell, plan[0].Side)
}

func TestPlanBuysUnheldTargetAsset(t *testing.T) {
	prices := domain.PriceMap{
		"USDT": decimal.NewFromInt(1),
		"BTC":  decimal.NewFromInt(40000),
	}
	// all value in USDT, BTC targeted but unheld
	val := value(t, map[string]float64{"USDT": 10000}, prices)
	target := allocation(t,
		domain.AllocationEntry{Asset: "BTC", Percent: decimal.NewFromInt(60)},
		domain.AllocationEntry{Asset: "USDT", Percent: decimal.NewFromInt(40)},
	)

	plan := New(nil).Plan(val, prices, target, minTrade)

	require.Len(t, plan, 2)
	assert.Equal(t, "BTC", plan[0].Asset)
	assert.Equal(t, domain.SideBuy, plan[0].Side)
	assert.True(t, decimal.NewFromInt(6000).Equal(plan[0].EstimatedValue))
	assert.True(t, decimal.NewFromFloat(0.15).Equal(plan[0].Quantity), "qty %s", plan[0].Quantity)
}

func TestPlanIsDeterministic(t *testing.T) {
	prices := domain.PriceMap{
		"BTC": decimal.NewFromInt(40000),
		"ETH": decimal.NewFromInt(2000),
		"ADA": decimal.NewFromInt(1),
		"SOL": decimal.NewFromInt(100),
	}
	val := value(t, map[string]float64{"BTC": 0.5}, prices)
	target := allocation(t,
		domain.AllocationEntry{Asset: "SOL", Percent: decimal.NewFromInt(30)},
		domain.AllocationEntry{Asset: "ADA", Percent: decimal.NewFromInt(20)},
		domain.AllocationEntry{Asset: "ETH", Percent: decimal.NewFromInt(25)},
		domain.AllocationEntry{Asset: "BTC", Percent: decimal.NewFromInt(25)},
	)

	p := New(nil)
	first := p.Plan(val, prices, target, minTrade)
	require.NotEmpty(t, first)

	order := make([]string, len(first))
	for i, instr := range first {
		order[i] = instr.Asset
	}
	assert.Equal(t, []string{"SOL", "ADA", "ETH", "BTC"}, order)

	for i := 0; i < 10; i++ {
		again := p.Plan(val, prices, target, minTrade)
		assert.Equal(t, first, again)
	}
}
