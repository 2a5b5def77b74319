package market_data

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// sampleCovariance computes the sample covariance matrix (N-1 denominator)
// of row-per-ticker return series of equal length.
func sampleCovariance(returns [][]float64) ([][]float64, error) {
	n := len(returns)
	if n == 0 {
		return nil, fmt.Errorf("no return series provided")
	}

	obs := len(returns[0])
	for i, series := range returns {
		if len(series) != obs {
			return nil, fmt.Errorf("inconsistent return lengths: expected %d, got %d for series %d", obs, len(series), i)
		}
	}
	if obs < 2 {
		return nil, fmt.Errorf("insufficient data: need at least 2 observations, got %d", obs)
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := stat.Covariance(returns[i], returns[j], nil)
			cov[i][j] = c
			if i != j {
				cov[j][i] = c
			}
		}
	}

	return cov, nil
}

// ledoitWolfShrink shrinks a sample covariance matrix toward the identity
// target scaled by the average variance. Shrinkage conditions the matrix
// when the estimation window is short relative to the number of assets.
//
// Reference: Ledoit, O., & Wolf, M. (2004). "A well-conditioned estimator
// for large-dimensional covariance matrices"
func ledoitWolfShrink(sample [][]float64) ([][]float64, error) {
	n := len(sample)
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}

	var avgVar float64
	for i := 0; i < n; i++ {
		avgVar += sample[i][i]
	}
	avgVar /= float64(n)

	// Shrinkage target: avgVar on the diagonal, zero elsewhere.
	target := func(i, j int) float64 {
		if i == j {
			return avgVar
		}
		return 0
	}

	// Intensity estimate: how spread out the sample elements are relative
	// to their distance from the target. Clamped to [0, 0.5] with a 20%
	// default when the structure is too small to estimate from.
	shrinkage := 0.2
	if n > 2 && avgVar > 0 {
		var sumSqDiff, sumSample, sumSqSample float64
		count := float64(n * n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				diff := sample[i][j] - target(i, j)
				sumSqDiff += diff * diff
				sumSample += sample[i][j]
				sumSqSample += sample[i][j] * sample[i][j]
			}
		}
		meanSqDiff := sumSqDiff / count
		meanSample := sumSample / count
		varSample := sumSqSample/count - meanSample*meanSample

		if varSample > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0.0, varSample/(varSample+meanSqDiff)))
		}
	}

	shrunk := make([][]float64, n)
	for i := 0; i < n; i++ {
		shrunk[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			shrunk[i][j] = (1-shrinkage)*sample[i][j] + shrinkage*target(i, j)
		}
	}

	return shrunk, nil
}

// correlationMatrix computes the Pearson correlation matrix of
// row-per-ticker return series. Correlation is scale-invariant, so no
// annualization applies.
func correlationMatrix(returns [][]float64) [][]float64 {
	n := len(returns)
	corr := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
		corr[i][i] = 1.0
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := stat.Correlation(returns[i], returns[j], nil)
			if math.IsNaN(c) {
				c = 0
			}
			corr[i][j] = c
			corr[j][i] = c
		}
	}

	return corr
}
