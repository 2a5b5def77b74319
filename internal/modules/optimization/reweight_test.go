package optimization

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReweight_SingleSelectionTakesFullWeight(t *testing.T) {
	allocation := []int{0, 1, 0}
	returns := []float64{0.1, 0.2, 0.15}
	cov := [][]float64{
		{0.04, 0.01, 0.0},
		{0.01, 0.09, 0.02},
		{0.0, 0.02, 0.03},
	}

	solver := NewMVSolver(42, zerolog.Nop())
	weights := solver.Reweight(allocation, returns, cov, 0.5)

	assert.Equal(t, []float64{0.0, 1.0, 0.0}, weights, "sole selected asset should carry the whole portfolio")
}

func TestReweight_EmptySelectionFallsBackToEqualWeights(t *testing.T) {
	allocation := []int{0, 0, 0, 0}
	returns := []float64{0.1, 0.2, 0.15, 0.05}
	cov := [][]float64{
		{0.04, 0, 0, 0},
		{0, 0.09, 0, 0},
		{0, 0, 0.03, 0},
		{0, 0, 0, 0.02},
	}

	solver := NewMVSolver(42, zerolog.Nop())
	weights := solver.Reweight(allocation, returns, cov, 0.5)

	require.Len(t, weights, 4)
	for i, w := range weights {
		assert.InDelta(t, 0.25, w, 1e-12, "asset %d should get an equal share", i)
	}
}

func TestReweight_SolvesSubsetAndScattersBack(t *testing.T) {
	// Assets 0 and 2 are selected; asset 2 has much lower variance, so the
	// risk-averse sub-solve should favor it.
	allocation := []int{1, 0, 1, 0}
	returns := []float64{0.1, 0.5, 0.1, 0.5}
	cov := [][]float64{
		{0.09, 0.0, 0.0, 0.0},
		{0.0, 0.04, 0.0, 0.0},
		{0.0, 0.0, 0.01, 0.0},
		{0.0, 0.0, 0.0, 0.04},
	}

	solver := NewMVSolver(42, zerolog.Nop())
	weights := solver.Reweight(allocation, returns, cov, 0.0)

	require.Len(t, weights, 4)
	assert.Zero(t, weights[1], "unselected assets must stay at zero")
	assert.Zero(t, weights[3], "unselected assets must stay at zero")

	sum := weights[0] + weights[2]
	assert.InDelta(t, 1.0, sum, 1e-6, "selected weights should sum to 1")
	assert.Greater(t, weights[2], weights[0], "lower-variance asset should dominate a risk-averse sub-solve")
}

func TestReweight_AllSelectedMatchesFullSolve(t *testing.T) {
	allocation := []int{1, 1, 1}
	returns := []float64{0.12, 0.08, 0.1}
	cov := [][]float64{
		{0.04, 0.01, 0.005},
		{0.01, 0.03, 0.008},
		{0.005, 0.008, 0.025},
	}

	reweighted := NewMVSolver(9, zerolog.Nop()).Reweight(allocation, returns, cov, 0.5)
	solved := NewMVSolver(9, zerolog.Nop()).Solve(returns, cov, 0.5)

	assert.Equal(t, solved, reweighted, "selecting every asset should reduce to the plain solve")
}
