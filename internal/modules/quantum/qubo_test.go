package quantum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQUBO_ScalesRiskAndReturn(t *testing.T) {
	returns := []float64{0.1, 0.2}
	cov := [][]float64{
		{0.04, 0.01},
		{0.01, 0.09},
	}

	// With lambda = 0 only the scaled covariance survives; the scale is
	// max|cov| = 0.09.
	q := BuildQUBO(returns, cov, 0.0, nil, nil)

	require.Len(t, q, 2)
	assert.InDelta(t, 0.04/0.09, q[0][0], 1e-12, "Q[0][0] should be cov[0][0]/scale")
	assert.InDelta(t, 1.0, q[1][1], 1e-12, "Q[1][1] should be cov[1][1]/scale")
	assert.InDelta(t, 0.01/0.09, q[0][1], 1e-12)
	assert.InDelta(t, 0.01/0.09, q[1][0], 1e-12)
}

func TestBuildQUBO_ReturnTermOnDiagonal(t *testing.T) {
	returns := []float64{0.1, 0.2}
	cov := [][]float64{
		{0.04, 0.01},
		{0.01, 0.09},
	}

	q := BuildQUBO(returns, cov, 1.0, nil, nil)

	// Diagonal loses lambda * ret/retScale with retScale = 0.2; off-diagonal
	// entries are untouched by the return term.
	assert.InDelta(t, 0.04/0.09-0.1/0.2, q[0][0], 1e-12)
	assert.InDelta(t, 0.09/0.09-0.2/0.2, q[1][1], 1e-12)
	assert.InDelta(t, 0.01/0.09, q[0][1], 1e-12)
}

func TestBuildQUBO_CardinalityPenaltyShiftsEntries(t *testing.T) {
	returns := []float64{0.1, 0.2}
	cov := [][]float64{
		{0.04, 0.01},
		{0.01, 0.09},
	}

	base := BuildQUBO(returns, cov, 0.0, nil, nil)

	// lo = hi = 1 means K = 1, so diagonals shift by A*(1-2K) = -A and
	// off-diagonals by +A, with A = max|Q| before the penalty.
	one := 1
	q := BuildQUBO(returns, cov, 0.0, &one, &one)

	a := maxAbsMatrix(base)
	require.Greater(t, a, 0.0)

	for i := range q {
		assert.InDelta(t, base[i][i]-a, q[i][i], 1e-12, "diagonal should shift by -A")
		for j := range q[i] {
			if i != j {
				assert.InDelta(t, base[i][j]+a, q[i][j], 1e-12, "off-diagonal should shift by +A")
			}
		}
	}

	// Symmetry survives the penalty.
	assert.InDelta(t, q[0][1], q[1][0], 1e-12, "Q should stay symmetric")
}

func TestBuildQUBO_ClampsBoundsIntoRange(t *testing.T) {
	returns := []float64{0.1, 0.2, 0.15}
	cov := [][]float64{
		{0.04, 0.01, 0.02},
		{0.01, 0.09, 0.01},
		{0.02, 0.01, 0.05},
	}

	// Bounds wider than [1, n] clamp to it, so K = (1+3)/2 = 2; a single
	// max bound of n+5 must behave exactly like max = n.
	zero := 0
	huge := 8
	clamped := BuildQUBO(returns, cov, 0.5, &zero, &huge)
	unbounded := BuildQUBO(returns, cov, 0.5, nil, nil)

	// The penalty with K = (1+n)/2 still applies: entries differ from the
	// unpenalized matrix.
	assert.Greater(t, math.Abs(clamped[0][0]-unbounded[0][0]), 1e-9, "penalty should change the matrix")

	lo, hi := 1, 3
	explicit := BuildQUBO(returns, cov, 0.5, &lo, &hi)
	for i := range clamped {
		for j := range clamped[i] {
			assert.InDelta(t, explicit[i][j], clamped[i][j], 1e-12)
		}
	}
}

func TestBuildQUBO_ZeroInputsFallBackToUnitScale(t *testing.T) {
	returns := []float64{0.0, 0.0}
	cov := [][]float64{
		{0.0, 0.0},
		{0.0, 0.0},
	}

	q := BuildQUBO(returns, cov, 1.0, nil, nil)

	for i := range q {
		for j := range q[i] {
			assert.Zero(t, q[i][j], "all-zero inputs should produce a zero matrix, not NaN")
		}
	}
}

func TestEvaluateQUBO(t *testing.T) {
	q := [][]float64{
		{1.0, 0.5},
		{0.5, 2.0},
	}

	assert.Zero(t, EvaluateQUBO(q, []int{0, 0}))
	assert.InDelta(t, 1.0, EvaluateQUBO(q, []int{1, 0}), 1e-12)
	assert.InDelta(t, 2.0, EvaluateQUBO(q, []int{0, 1}), 1e-12)
	assert.InDelta(t, 4.0, EvaluateQUBO(q, []int{1, 1}), 1e-12, "x'Qx should include both cross terms")
}
