package optimization

// Reweight converts a binary selection into a continuous full-length weight
// vector. With two or more assets selected, the classical solver runs on the
// selected subset's returns and covariance sub-matrix and its weights are
// scattered back into place, unselected entries staying at zero. A single
// selected asset takes the whole portfolio. An empty selection degrades to
// equal weights over every asset — a usable portfolio rather than a failure.
func (s *MVSolver) Reweight(allocation []int, returns []float64, cov [][]float64, riskTolerance float64) []float64 {
	n := len(allocation)
	weights := make([]float64, n)

	selected := make([]int, 0, n)
	for i, bit := range allocation {
		if bit == 1 {
			selected = append(selected, i)
		}
	}

	switch len(selected) {
	case 0:
		s.log.Warn().Msg("Selection is empty, spreading weight equally across all assets")
		return equalWeights(n)
	case 1:
		weights[selected[0]] = 1.0
		return weights
	}

	subReturns := make([]float64, len(selected))
	subCov := make([][]float64, len(selected))
	for i, si := range selected {
		subReturns[i] = returns[si]
		subCov[i] = make([]float64, len(selected))
		for j, sj := range selected {
			subCov[i][j] = cov[si][sj]
		}
	}

	subWeights := s.Solve(subReturns, subCov, riskTolerance)
	for i, si := range selected {
		weights[si] = subWeights[i]
	}
	return weights
}
