package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/kustodian/internal"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"github.com/vadiminshakov/kustodian/internal/services/pricer"
	"github.com/vadiminshakov/kustodian/internal/services/wallet"
	"github.com/vadiminshakov/kustodian/internal/storage/ledger"
)

type storeStub struct {
	snapshots    []domain.PortfolioSnapshot
	transactions []domain.Transaction
}

func (s *storeStub) Settings(_ context.Context, _ string) (domain.RebalanceSettings, error) {
	return domain.DefaultRebalanceSettings(), nil
}

func (s *storeStub) SaveSnapshot(_ context.Context, snapshot domain.PortfolioSnapshot) error {
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

func (s *storeStub) Snapshots(_ context.Context, _ string, _ int) ([]domain.PortfolioSnapshot, error) {
	return s.snapshots, nil
}

func (s *storeStub) SaveTransaction(_ context.Context, tx domain.Transaction) error {
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *storeStub) Transactions(_ context.Context, _ string, _ int) ([]domain.Transaction, error) {
	return s.transactions, nil
}

func newTestServer(t *testing.T) (*Server, *ledger.Journal, *storeStub) {
	t.Helper()

	target, err := domain.NewAllocation([]domain.AllocationEntry{
		{Asset: "BTC", Percent: decimal.NewFromInt(50)},
		{Asset: "ETH", Percent: decimal.NewFromInt(50)},
	})
	require.NoError(t, err)

	prices := domain.PriceMap{
		"BTC": decimal.NewFromInt(60000),
		"ETH": decimal.NewFromInt(2000),
	}
	balances := map[string]domain.Balance{
		"BTC": domain.NewBalance(decimal.NewFromFloat(0.1), decimal.Zero, decimal.Zero),
		"ETH": domain.NewBalance(decimal.NewFromInt(2), decimal.Zero, decimal.Zero),
	}

	journal, err := ledger.NewJournal(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })

	store := &storeStub{}
	rb, err := internal.NewRebalancer("growth", target,
		pricer.NewStaticPricer(prices),
		wallet.NewStaticWallet(balances),
		noopTrader{}, store, journal, nil)
	require.NoError(t, err)

	server := NewServer(":0", map[string]*internal.Rebalancer{"growth": rb}, journal, nil)
	return server, journal, store
}

type noopTrader struct{}

func (noopTrader) PlaceOrder(_ context.Context, _ domain.Pair, _ domain.Side, _, priceHint decimal.Decimal) (domain.OrderResult, error) {
	return domain.OrderResult{Status: domain.OrderFilled, Price: priceHint}, nil
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSuggestionsEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)
	handler := server.Handler()

	rec := get(t, handler, "/portfolios/growth/suggestions")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp suggestionsJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "growth", resp.Portfolio)
	assert.True(t, resp.ShouldRebalance)
	require.Len(t, resp.Trades, 2)
	assert.Equal(t, "BTC", resp.Trades[0].Asset)
	assert.Equal(t, "sell", resp.Trades[0].Side)
	assert.Equal(t, "ETH", resp.Trades[1].Asset)
	assert.Equal(t, "buy", resp.Trades[1].Side)
	assert.Equal(t, "10000", resp.TotalValue)
}

func TestSuggestionsUnknownPortfolio(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := get(t, server.Handler(), "/portfolios/nope/suggestions")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPerformanceEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)
	handler := server.Handler()

	rec := get(t, handler, "/portfolios/growth/performance?days=7")
	require.Equal(t, http.StatusOK, rec.Code)

	var report internal.Performance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "growth", report.Portfolio)
	assert.Nil(t, report.RiskMetrics, "no history yet")

	rec = get(t, handler, "/portfolios/growth/performance?days=banana")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, handler, "/portfolios/growth/performance?days=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCostsEndpoint(t *testing.T) {
	server, _, store := newTestServer(t)
	handler := server.Handler()

	store.transactions = []domain.Transaction{
		{
			ID:        uuid.New().String(),
			Portfolio: "growth",
			Asset:     "BTC",
			Type:      domain.TransactionRebalance,
			Side:      domain.SideSell,
			Quantity:  decimal.NewFromFloat(0.025),
			Price:     decimal.NewFromInt(40000),
			Fee:       decimal.NewFromFloat(12.5),
			Venue:     domain.VenueRetail,
			Timestamp: time.Now().UTC(),
		},
		{
			ID:        uuid.New().String(),
			Portfolio: "growth",
			Asset:     "ETH",
			Type:      domain.TransactionRebalance,
			Side:      domain.SideBuy,
			Quantity:  decimal.NewFromFloat(0.5),
			Price:     decimal.NewFromInt(2000),
			Fee:       decimal.NewFromFloat(2.5),
			Venue:     domain.VenuePro,
			Timestamp: time.Now().UTC(),
		},
	}

	rec := get(t, handler, "/portfolios/growth/costs")
	require.Equal(t, http.StatusOK, rec.Code)

	var analysis internal.CostAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))

	assert.Equal(t, "growth", analysis.Portfolio)
	assert.Equal(t, 1, analysis.Venues[domain.VenueRetail].TransactionCount)
	assert.Equal(t, 1, analysis.Venues[domain.VenuePro].TransactionCount)
	assert.True(t, decimal.NewFromInt(1000).Equal(analysis.Venues[domain.VenueRetail].TotalVolume))
	assert.True(t, decimal.NewFromInt(10).Equal(analysis.ProSavings), "savings %s", analysis.ProSavings)

	rec = get(t, handler, "/portfolios/nope/costs")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerEndpoint(t *testing.T) {
	server, journal, _ := newTestServer(t)
	handler := server.Handler()

	require.NoError(t, journal.AppendTransaction(domain.Transaction{
		ID:        uuid.New().String(),
		Portfolio: "growth",
		Asset:     "BTC",
		Type:      domain.TransactionRebalance,
		Side:      domain.SideSell,
		Quantity:  decimal.NewFromFloat(0.01),
		Price:     decimal.NewFromInt(60000),
		Venue:     domain.VenuePaper,
		Timestamp: time.Now().UTC(),
	}))
	// an entry for another portfolio must be filtered out
	require.NoError(t, journal.AppendTransaction(domain.Transaction{
		ID:        uuid.New().String(),
		Portfolio: "other",
		Asset:     "ETH",
		Type:      domain.TransactionRebalance,
		Side:      domain.SideBuy,
		Quantity:  decimal.NewFromInt(1),
		Price:     decimal.NewFromInt(2000),
		Venue:     domain.VenuePaper,
		Timestamp: time.Now().UTC(),
	}))

	rec := get(t, handler, "/portfolios/growth/ledger")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []ledger.TransactionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "BTC", records[0].Transaction.Asset)
	assert.Equal(t, domain.SideSell, records[0].Transaction.Side)
	// sides travel as strings, matching the sqlite representation
	assert.Contains(t, rec.Body.String(), `"side":"sell"`)

	rec = get(t, handler, "/portfolios/growth/ledger?after=banana")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
