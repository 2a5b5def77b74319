package optimization

import (
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"
)

// sumPenaltyWeight enforces the budget constraint in the penalty formulation.
const sumPenaltyWeight = 1000.0

// MVSolver solves the long-only Markowitz mean-variance problem.
//
// Mathematical formulation:
//
//	minimize   w'Σw - λ·μ'w
//	subject to Σw = 1 (fully invested)
//	           0 ≤ w_i ≤ 1 (long-only)
//
// where λ ∈ [0,1] is the risk tolerance: 0 minimizes variance, 1 weighs the
// expected return fully against it. The budget constraint is handled with a
// quadratic penalty and the box constraint by projection, so the inner
// optimizer runs unconstrained. Because the inner optimizer is local, three
// starting points are tried and the best feasible result wins.
type MVSolver struct {
	src rand.Source
	log zerolog.Logger
}

// NewMVSolver creates a solver. The seed fixes the random simplex start so
// repeated solves are reproducible.
func NewMVSolver(seed uint64, log zerolog.Logger) *MVSolver {
	return &MVSolver{
		src: rand.NewPCG(seed, seed+1),
		log: log.With().Str("component", "mv_solver").Logger(),
	}
}

// Solve returns the optimal weight vector: every entry in [0,1], summing to
// exactly 1. Numerical non-convergence is absorbed: if no starting point
// produces a converged feasible result, the equal-weight portfolio is
// returned instead of an error.
func (s *MVSolver) Solve(returns []float64, cov [][]float64, riskTolerance float64) []float64 {
	n := len(returns)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []float64{1.0}
	}

	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sigma.Set(i, j, cov[i][j])
		}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			w := clampUnit(x)
			obj := portfolioObjective(w, returns, sigma, riskTolerance)

			sum := 0.0
			for i := range w {
				sum += w[i]
			}
			obj += sumPenaltyWeight * (sum - 1.0) * (sum - 1.0)

			return obj
		},
		Grad: func(grad, x []float64) {
			w := clampUnit(x)

			// d/dw [w'Σw - λμ'w] = 2Σw - λμ
			for i := 0; i < n; i++ {
				grad[i] = -riskTolerance * returns[i]
				for j := 0; j < n; j++ {
					grad[i] += 2 * sigma.At(i, j) * w[j]
				}
			}

			sum := 0.0
			for i := range w {
				sum += w[i]
			}
			for i := 0; i < n; i++ {
				grad[i] += 2 * sumPenaltyWeight * (sum - 1.0)
			}
		},
	}

	var best []float64
	bestVal := math.Inf(1)

	for _, start := range s.startPoints(returns) {
		x, ok := minimizeFrom(problem, start)
		if !ok {
			continue
		}

		// Candidates are compared on the raw objective after being made
		// exactly feasible, so the penalty residue cannot skew the pick.
		w := renormalize(clampUnit(x))
		val := portfolioObjective(w, returns, sigma, riskTolerance)
		if val < bestVal {
			bestVal = val
			best = w
		}
	}

	if best == nil {
		s.log.Warn().
			Int("assets", n).
			Float64("risk_tolerance", riskTolerance).
			Msg("No solver start converged, falling back to equal weights")
		return equalWeights(n)
	}

	return best
}

// minimizeFrom runs one start to completion: BFGS first (the analytical
// gradient makes it fast on this quadratic), Nelder-Mead as the retry when
// the projected landscape trips the line search.
func minimizeFrom(problem optimize.Problem, start []float64) ([]float64, bool) {
	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	result, err := optimize.Minimize(problem, start, &optimize.Settings{}, &optimize.BFGS{})
	if err == nil && successStatuses[result.Status] {
		return result.X, true
	}

	result, err = optimize.Minimize(problem, start, &optimize.Settings{}, &optimize.NelderMead{})
	if err == nil && successStatuses[result.Status] {
		return result.X, true
	}

	return nil, false
}

// startPoints builds the multi-start schedule: the neutral 1/N portfolio,
// everything in the highest-return asset, and a uniform random point on the
// simplex to explore a different basin.
func (s *MVSolver) startPoints(returns []float64) [][]float64 {
	n := len(returns)

	oneHot := make([]float64, n)
	oneHot[argmaxReturn(returns)] = 1.0

	return [][]float64{
		equalWeights(n),
		oneHot,
		s.randomSimplex(n),
	}
}

// randomSimplex draws a uniform point on the probability simplex: i.i.d.
// unit-exponential draws normalized by their sum (a flat Dirichlet).
func (s *MVSolver) randomSimplex(n int) []float64 {
	exp := distuv.Exponential{Rate: 1, Src: s.src}

	draws := make([]float64, n)
	sum := 0.0
	for i := range draws {
		draws[i] = exp.Rand()
		sum += draws[i]
	}
	for i := range draws {
		draws[i] /= math.Max(sum, 1e-10)
	}
	return draws
}

// portfolioObjective is the raw Markowitz objective w'Σw - λ·μ'w without the
// feasibility penalty.
func portfolioObjective(w, returns []float64, sigma *mat.Dense, riskTolerance float64) float64 {
	var ret, variance float64
	for i := range w {
		ret += returns[i] * w[i]
		for j := range w {
			variance += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return variance - riskTolerance*ret
}

// clampUnit projects a candidate onto the [0,1] box without touching the
// optimizer-owned slice.
func clampUnit(x []float64) []float64 {
	proj := make([]float64, len(x))
	for i, v := range x {
		proj[i] = math.Min(1.0, math.Max(0.0, v))
	}
	return proj
}

// renormalize rescales non-negative weights to sum to exactly 1. A degenerate
// all-zero vector becomes the equal-weight portfolio.
func renormalize(w []float64) []float64 {
	sum := 0.0
	for i := range w {
		sum += w[i]
	}
	if sum <= 0 {
		return equalWeights(len(w))
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func equalWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

func argmaxReturn(returns []float64) int {
	best := 0
	for i, r := range returns {
		if r > returns[best] {
			best = i
		}
	}
	return best
}
