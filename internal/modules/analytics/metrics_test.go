package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioMetrics_HandComputed(t *testing.T) {
	weights := []float64{0.5, 0.5}
	meanReturns := []float64{0.10, 0.20}
	cov := [][]float64{
		{0.04, 0.0},
		{0.0, 0.04},
	}

	m := PortfolioMetrics(weights, meanReturns, cov, nil)

	assert.InDelta(t, 0.15, m.ExpectedReturn, 1e-9)
	assert.InDelta(t, math.Sqrt(0.02), m.Volatility, 1e-6)
	assert.InDelta(t, (0.15-RiskFreeRate)/math.Sqrt(0.02), m.SharpeRatio, 1e-5)
	assert.Nil(t, m.CVaR95)
}

func TestPortfolioMetrics_RenormalizesBinarySelection(t *testing.T) {
	weights := []float64{1, 0, 1}
	meanReturns := []float64{0.10, 0.90, 0.30}
	cov := [][]float64{
		{0.04, 0, 0},
		{0, 0.04, 0},
		{0, 0, 0.04},
	}

	m := PortfolioMetrics(weights, meanReturns, cov, nil)

	// Selected assets split 50/50; the unselected one contributes nothing.
	assert.InDelta(t, 0.20, m.ExpectedReturn, 1e-9)
}

func TestPortfolioMetrics_ZeroVolatilityZeroesSharpe(t *testing.T) {
	weights := []float64{0.5, 0.5}
	meanReturns := []float64{0.10, 0.20}
	cov := [][]float64{
		{0, 0},
		{0, 0},
	}

	m := PortfolioMetrics(weights, meanReturns, cov, nil)

	assert.Equal(t, 0.0, m.Volatility)
	assert.Equal(t, 0.0, m.SharpeRatio)
}

func TestPortfolioMetrics_ZeroWeightVectorStaysZero(t *testing.T) {
	weights := []float64{0, 0}
	meanReturns := []float64{0.10, 0.20}
	cov := [][]float64{
		{0.04, 0},
		{0, 0.04},
	}

	m := PortfolioMetrics(weights, meanReturns, cov, nil)

	assert.Equal(t, 0.0, m.ExpectedReturn)
	assert.Equal(t, 0.0, m.Volatility)
	assert.Equal(t, 0.0, m.SharpeRatio)
}

func TestPortfolioMetrics_CVaRFromDailySeries(t *testing.T) {
	// 20 observations: one bad day in the 5% tail.
	first := make([]float64, 20)
	for i := range first {
		first[i] = 0.01
	}
	first[7] = -0.10
	second := make([]float64, 20)

	weights := []float64{1, 0}
	meanReturns := []float64{0.10, 0.20}
	cov := [][]float64{
		{0.04, 0},
		{0, 0.04},
	}

	m := PortfolioMetrics(weights, meanReturns, cov, [][]float64{first, second})

	require.NotNil(t, m.CVaR95)
	assert.InDelta(t, -0.10, *m.CVaR95, 1e-9)
}

func TestPortfolioDailyReturns_WeightsSeries(t *testing.T) {
	daily := [][]float64{
		{0.02, -0.01},
		{0.00, 0.03},
	}

	series := portfolioDailyReturns([]float64{0.5, 0.5}, daily)

	require.Len(t, series, 2)
	assert.InDelta(t, 0.01, series[0], 1e-9)
	assert.InDelta(t, 0.01, series[1], 1e-9)
}

func TestRenormalized_SumsToOne(t *testing.T) {
	w := renormalized([]float64{2, 2, 4})

	assert.InDelta(t, 0.25, w[0], 1e-9)
	assert.InDelta(t, 0.25, w[1], 1e-9)
	assert.InDelta(t, 0.50, w[2], 1e-9)
}
