package quantum

import "math"

// minPenaltyStrength keeps the cardinality penalty non-zero even when the
// financial objective collapses to an all-zero matrix.
const minPenaltyStrength = 1e-6

// BuildQUBO constructs the matrix Q such that x'Qx is the portfolio
// objective to minimize over binary selections x.
//
// The two competing terms:
//   - Covariance (risk):  Q[i][j] = cov[i][j] / covScale  (small is good)
//   - Return:             Q[i][i] -= lambda * returns[i] / retScale
//
// Both are normalized by their max absolute value so riskTolerance in [0,1]
// has consistent meaning across inputs of different scale: 0 is pure risk
// minimization, 1 is pure return maximization. A zero max falls back to 1.0
// to avoid dividing by zero.
//
// When minAssets or maxAssets is set, a soft cardinality penalty
// A*(sum(x)-K)^2 is added, with K the midpoint of the clamped [lo,hi] range.
// Expanding over binary variables (x_i^2 = x_i) gives, up to a constant:
//
//	Q[i][i] += A * (1 - 2K)   for all i
//	Q[i][j] += A              for all i != j
//
// The strength A is the max absolute entry of Q before the penalty, so the
// cardinality signal is competitive with the financial objective without
// overwhelming it.
func BuildQUBO(returns []float64, cov [][]float64, riskTolerance float64, minAssets, maxAssets *int) [][]float64 {
	n := len(returns)

	retScale := maxAbsVector(returns)
	if retScale == 0 {
		retScale = 1.0
	}
	covScale := maxAbsMatrix(cov)
	if covScale == 0 {
		covScale = 1.0
	}

	q := make([][]float64, n)
	for i := 0; i < n; i++ {
		q[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			q[i][j] = cov[i][j] / covScale
		}
		q[i][i] -= riskTolerance * returns[i] / retScale
	}

	if minAssets != nil || maxAssets != nil {
		lo := 1
		if minAssets != nil && *minAssets > 1 {
			lo = *minAssets
		}
		hi := n
		if maxAssets != nil && *maxAssets < n {
			hi = *maxAssets
		}
		k := float64(lo+hi) / 2.0

		// Penalty strength scales with the objective built so far.
		a := math.Max(maxAbsMatrix(q), minPenaltyStrength)

		for i := 0; i < n; i++ {
			q[i][i] += a * (1.0 - 2.0*k)
			for j := 0; j < n; j++ {
				if i != j {
					q[i][j] += a
				}
			}
		}
	}

	return q
}

// EvaluateQUBO computes x'Qx for a binary selection vector.
func EvaluateQUBO(q [][]float64, x []int) float64 {
	var value float64
	for i := range q {
		if x[i] == 0 {
			continue
		}
		for j := range q[i] {
			if x[j] == 1 {
				value += q[i][j]
			}
		}
	}
	return value
}

func maxAbsVector(v []float64) float64 {
	var m float64
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func maxAbsMatrix(m [][]float64) float64 {
	var out float64
	for i := range m {
		for j := range m[i] {
			if a := math.Abs(m[i][j]); a > out {
				out = a
			}
		}
	}
	return out
}
