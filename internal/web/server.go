// Package web exposes a read-only JSON API over the rebalancing engine.
// There is no UI and no mutation endpoint; rendering is someone else's job.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/kustodian/internal"
	"github.com/vadiminshakov/kustodian/internal/storage/ledger"
	"go.uber.org/zap"
)

const defaultHistoryDays = 30

// Server serves suggestion, performance and ledger endpoints.
type Server struct {
	addr        string
	rebalancers map[string]*internal.Rebalancer
	journal     *ledger.Journal
	logger      *zap.Logger
}

// NewServer creates a web server over the given rebalancers.
func NewServer(addr string, rebalancers map[string]*internal.Rebalancer, journal *ledger.Journal, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:        addr,
		rebalancers: rebalancers,
		journal:     journal,
		logger:      logger,
	}
}

// Handler assembles the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/portfolios/{name}", func(r chi.Router) {
		r.Get("/suggestions", s.handleSuggestions)
		r.Get("/performance", s.handlePerformance)
		r.Get("/costs", s.handleCosts)
		r.Get("/ledger", s.handleLedger)
	})

	return r
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	s.logger.Info("web server started", zap.String("addr", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) rebalancer(w http.ResponseWriter, r *http.Request) (*internal.Rebalancer, bool) {
	name := chi.URLParam(r, "name")
	rb, ok := s.rebalancers[name]
	if !ok {
		http.Error(w, "unknown portfolio", http.StatusNotFound)
		return nil, false
	}
	return rb, true
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	rb, ok := s.rebalancer(w, r)
	if !ok {
		return
	}

	suggestions, err := rb.Suggestions(r.Context())
	if err != nil {
		s.logger.Error("suggestions request failed", zap.Error(err))
		http.Error(w, "failed to compute suggestions", http.StatusBadGateway)
		return
	}

	writeJSON(w, suggestionsResponse(suggestions))
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	rb, ok := s.rebalancer(w, r)
	if !ok {
		return
	}

	days := defaultHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	report, err := rb.Performance(r.Context(), days)
	if err != nil {
		s.logger.Error("performance request failed", zap.Error(err))
		http.Error(w, "failed to compute performance", http.StatusBadGateway)
		return
	}

	writeJSON(w, report)
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	rb, ok := s.rebalancer(w, r)
	if !ok {
		return
	}

	analysis, err := rb.CostAnalysis(r.Context())
	if err != nil {
		s.logger.Error("cost analysis request failed", zap.Error(err))
		http.Error(w, "failed to compute cost analysis", http.StatusBadGateway)
		return
	}

	writeJSON(w, analysis)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	rb, ok := s.rebalancer(w, r)
	if !ok {
		return
	}
	if s.journal == nil {
		http.Error(w, "ledger journal is not configured", http.StatusNotFound)
		return
	}

	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "after must be a non-negative integer", http.StatusBadRequest)
			return
		}
		after = parsed
	}

	records, err := s.journal.TransactionsAfter(after)
	if err != nil {
		s.logger.Error("ledger request failed", zap.Error(err))
		http.Error(w, "failed to read ledger", http.StatusInternalServerError)
		return
	}

	// the journal is global; filter down to the requested portfolio
	filtered := records[:0:0]
	for _, rec := range records {
		if rec.Transaction.Portfolio == rb.Name() {
			filtered = append(filtered, rec)
		}
	}

	writeJSON(w, filtered)
}

type plannedTradeJSON struct {
	Asset          string `json:"asset"`
	Side           string `json:"side"`
	Quantity       string `json:"quantity"`
	EstimatedValue string `json:"estimated_value"`
	CurrentPercent string `json:"current_percent"`
	TargetPercent  string `json:"target_percent"`
	Price          string `json:"price"`
	Venue          string `json:"venue"`
	VenueFee       string `json:"venue_fee"`
}

type suggestionsJSON struct {
	Portfolio       string             `json:"portfolio"`
	ShouldRebalance bool               `json:"should_rebalance"`
	Threshold       string             `json:"threshold"`
	Deviations      map[string]string  `json:"deviations"`
	Trades          []plannedTradeJSON `json:"trades"`
	EstimatedCost   string             `json:"estimated_cost"`
	TotalTradeValue string             `json:"total_trade_value"`
	TotalValue      string             `json:"total_value"`
	UnpricedAssets  []string           `json:"unpriced_assets,omitempty"`
}

func suggestionsResponse(s *internal.Suggestions) suggestionsJSON {
	out := suggestionsJSON{
		Portfolio:       s.Portfolio,
		ShouldRebalance: s.ShouldRebalance,
		Threshold:       s.Threshold.String(),
		Deviations:      make(map[string]string, len(s.Deviations)),
		EstimatedCost:   s.EstimatedCost.String(),
		TotalTradeValue: s.TotalTradeValue.String(),
		TotalValue:      s.Valuation.Total.String(),
		UnpricedAssets:  s.Valuation.Unpriced,
	}
	for asset, dev := range s.Deviations {
		out.Deviations[asset] = dev.String()
	}
	for _, t := range s.Trades {
		out.Trades = append(out.Trades, plannedTradeJSON{
			Asset:          t.Instruction.Asset,
			Side:           t.Instruction.Side.String(),
			Quantity:       t.Instruction.Quantity.String(),
			EstimatedValue: t.Instruction.EstimatedValue.String(),
			CurrentPercent: t.Instruction.CurrentPercent.Round(4).String(),
			TargetPercent:  t.Instruction.TargetPercent.String(),
			Price:          t.Instruction.Price.String(),
			Venue:          string(t.Venue),
			VenueFee:       t.VenueFee.String(),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
	}
}
