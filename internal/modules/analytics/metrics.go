package analytics

import (
	"math"

	"github.com/aristath/quantfolio/pkg/formulas"
)

// RiskFreeRate approximates the annualized US 3-month Treasury yield used
// in Sharpe ratio calculations.
const RiskFreeRate = 0.05

// minVolatility guards the Sharpe division for degenerate zero-variance
// portfolios.
const minVolatility = 1e-9

// cvarConfidence is the confidence level for the historical CVaR estimate.
const cvarConfidence = 0.95

// PortfolioMetrics computes annualized expected return, volatility, Sharpe
// ratio, and the 95% historical CVaR of the daily P&L for a weight vector.
// Weights are renormalized first, so a binary selection vector can be
// passed directly. dailyReturns rows are per-ticker daily return series
// aligned with meanReturns; pass nil to skip the CVaR estimate.
func PortfolioMetrics(weights, meanReturns []float64, cov [][]float64, dailyReturns [][]float64) Metrics {
	w := renormalized(weights)

	expectedReturn := 0.0
	for i := range w {
		expectedReturn += w[i] * meanReturns[i]
	}

	variance := 0.0
	for i := range w {
		for j := range w {
			variance += w[i] * cov[i][j] * w[j]
		}
	}
	volatility := math.Sqrt(variance)

	sharpe := 0.0
	if volatility > minVolatility {
		sharpe = (expectedReturn - RiskFreeRate) / volatility
	}

	m := Metrics{
		ExpectedReturn: round6(expectedReturn),
		Volatility:     round6(volatility),
		SharpeRatio:    round6(sharpe),
	}

	if len(dailyReturns) > 0 {
		cvar := round6(formulas.CalculateCVaR(portfolioDailyReturns(w, dailyReturns), cvarConfidence))
		m.CVaR95 = &cvar
	}

	return m
}

// portfolioDailyReturns collapses per-ticker daily return rows into the
// portfolio's daily return series under fixed weights.
func portfolioDailyReturns(weights []float64, dailyReturns [][]float64) []float64 {
	if len(dailyReturns) == 0 {
		return nil
	}
	series := make([]float64, len(dailyReturns[0]))
	for t := range series {
		total := 0.0
		for i := range weights {
			total += weights[i] * dailyReturns[i][t]
		}
		series[t] = total
	}
	return series
}

// renormalized returns a copy of weights scaled to sum to one. Vectors
// that sum to zero are returned unchanged.
func renormalized(weights []float64) []float64 {
	w := make([]float64, len(weights))
	copy(w, weights)
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum > 0 {
		for i := range w {
			w[i] /= sum
		}
	}
	return w
}

func round2(v float64) float64 {
	return math.Round(v*1e2) / 1e2
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
