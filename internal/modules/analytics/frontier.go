package analytics

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// frontierRandomCount is how many random portfolios fill out the
	// risk/return scatter behind the frontier curve.
	frontierRandomCount = 300

	// frontierGridCount is how many risk-tolerance levels the classical
	// optimizer is solved at to trace the frontier itself.
	frontierGridCount = 40

	// frontierSeed fixes the random portfolio cloud so repeated runs over
	// the same universe chart identically.
	frontierSeed = 42
)

// Frontier builds the efficient frontier chart data: a seeded cloud of
// random fully-invested portfolios plus classical solutions across an
// inclusive [0, 1] risk-tolerance grid. An empty universe or missing
// solver yields an empty slice rather than an error.
func (s *Service) Frontier(meanReturns []float64, cov [][]float64) []FrontierPoint {
	n := len(meanReturns)
	if n == 0 || s.solver == nil {
		return []FrontierPoint{}
	}

	points := make([]FrontierPoint, 0, frontierRandomCount+frontierGridCount)

	exp := distuv.Exponential{
		Rate: 1,
		Src:  rand.NewPCG(frontierSeed, frontierSeed+1),
	}
	for i := 0; i < frontierRandomCount; i++ {
		points = append(points, frontierPoint(randomSimplex(n, exp), meanReturns, cov, "random"))
	}

	for i := 0; i < frontierGridCount; i++ {
		riskTolerance := float64(i) / float64(frontierGridCount-1)
		weights := s.solver.Solve(meanReturns, cov, riskTolerance)
		points = append(points, frontierPoint(weights, meanReturns, cov, "frontier"))
	}

	return points
}

// frontierPoint evaluates one weight vector against the annualized moments.
func frontierPoint(weights, meanReturns []float64, cov [][]float64, pointType string) FrontierPoint {
	expectedReturn := 0.0
	for i := range weights {
		expectedReturn += weights[i] * meanReturns[i]
	}

	variance := 0.0
	for i := range weights {
		for j := range weights {
			variance += weights[i] * cov[i][j] * weights[j]
		}
	}
	volatility := 0.0
	if variance > 0 {
		volatility = math.Sqrt(variance)
	}

	sharpe := 0.0
	if volatility > minVolatility {
		sharpe = (expectedReturn - RiskFreeRate) / volatility
	}

	return FrontierPoint{
		Volatility:     round6(volatility),
		ExpectedReturn: round6(expectedReturn),
		Sharpe:         round4(sharpe),
		Type:           pointType,
	}
}

// randomSimplex draws a uniform point on the n-simplex by normalizing
// exponential draws, equivalent to a flat Dirichlet sample.
func randomSimplex(n int, exp distuv.Exponential) []float64 {
	weights := make([]float64, n)
	sum := 0.0
	for i := range weights {
		weights[i] = exp.Rand()
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}
