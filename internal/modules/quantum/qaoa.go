package quantum

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"
)

// Defaults for the variational circuit family.
const (
	DefaultDepth = 2
	DefaultShots = 1024
	defaultSeed  = 42
)

// Config controls the variational solve.
type Config struct {
	// Depth is the number of (cost, mixer) layers; the search runs over
	// 2*Depth angles.
	Depth int

	// Shots is the measurement budget for the final evaluation. Search
	// evaluations use a reduced per-call budget derived from it.
	Shots int

	// Seed fixes the initial-angle draw so runs are reproducible.
	Seed int64
}

// Engine runs the full QAOA pipeline: QUBO construction, Ising encoding, the
// derivative-free angle search, and best-bitstring extraction.
type Engine struct {
	depth int
	shots int
	seed  int64
	log   zerolog.Logger
}

// NewEngine creates an engine, applying defaults for unset config fields.
func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	depth := cfg.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}
	shots := cfg.Shots
	if shots <= 0 {
		shots = DefaultShots
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = defaultSeed
	}
	return &Engine{
		depth: depth,
		shots: shots,
		seed:  seed,
		log:   log.With().Str("component", "qaoa_engine").Logger(),
	}
}

// Solve finds a low-energy binary selection for the portfolio objective.
//
// The circuit family is Depth layers of (cost unitary, mixer unitary) on a
// uniform superposition. A derivative-free Nelder-Mead search proposes angle
// vectors; each evaluation executes the circuit on the routed backend with a
// reduced shot budget, estimates the cost expectation from the returned
// counts, and appends it to the convergence trace. The search runs on a
// fixed evaluation budget rather than an error tolerance. One final
// full-shot execution at the best angles produces the authoritative
// distribution from which the best bitstring is extracted.
//
// Executor failures abort the search and are returned to the caller: a
// partially observed convergence trace cannot be trusted, so there is no
// internal retry.
func (e *Engine) Solve(
	ctx context.Context,
	returns []float64,
	cov [][]float64,
	riskTolerance float64,
	minAssets, maxAssets *int,
	backend BackendConfig,
) (*SolveResult, error) {
	n := len(returns)
	if n == 0 {
		return nil, fmt.Errorf("no assets to optimize")
	}
	if backend.Executor == nil {
		return nil, fmt.Errorf("backend has no circuit executor")
	}

	q := BuildQUBO(returns, cov, riskTolerance, minAssets, maxAssets)
	hamiltonian := EncodeIsing(q)
	spec := CircuitSpec{NumQubits: n, Layers: e.depth, Cost: hamiltonian}

	maxEvals := evaluationBudget(n)
	searchBudget := searchShots(e.shots, n)

	e.log.Info().
		Int("assets", n).
		Int("depth", e.depth).
		Int("pauli_terms", len(hamiltonian.Terms)).
		Int("max_evaluations", maxEvals).
		Int("search_shots", searchBudget).
		Int("final_shots", e.shots).
		Str("backend", backend.Name).
		Msg("Starting variational angle search")

	// No warm start: every parameter is drawn uniformly from [-pi, pi].
	rng := rand.New(rand.NewSource(e.seed))
	initial := make([]float64, 2*e.depth)
	for i := range initial {
		initial[i] = -math.Pi + 2.0*math.Pi*rng.Float64()
	}

	acc := &traceAccumulator{
		ctx:      ctx,
		executor: backend.Executor,
		spec:     spec,
		shots:    searchBudget,
	}

	problem := optimize.Problem{
		Func:   acc.objective,
		Status: acc.status,
	}
	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		// The budget is the only stop condition: the converger is sized so
		// it cannot fire before the evaluation limit.
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Iterations: maxEvals,
		},
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if acc.err != nil {
		return nil, fmt.Errorf("circuit execution failed: %w", acc.err)
	}
	if err != nil {
		return nil, fmt.Errorf("angle search failed: %w", err)
	}

	best := initial
	if result != nil && len(result.X) == len(initial) {
		best = result.X
	}

	// Authoritative distribution: one high-shot run at the best angles.
	counts, err := backend.Executor.Execute(ctx, spec, best, e.shots)
	if err != nil {
		return nil, fmt.Errorf("final circuit execution failed: %w", err)
	}

	bitstring := BestBitstring(counts, q, n)
	selection := Selection(bitstring)

	// If sampling excluded every asset, hold the single highest-return one
	// instead of returning an empty portfolio.
	if selectedCount(selection) == 0 {
		selection[argmax(returns)] = 1
	}

	e.log.Info().
		Int("evaluations", len(acc.trace)).
		Str("bitstring", bitstring).
		Int("selected", selectedCount(selection)).
		Msg("Variational search complete")

	return &SolveResult{
		Selection:   selection,
		Counts:      counts,
		Convergence: acc.trace,
	}, nil
}

// traceAccumulator is the search objective's state: it owns the convergence
// trace and latches the first executor failure so the search halts instead
// of continuing on garbage values.
type traceAccumulator struct {
	ctx      context.Context
	executor CircuitExecutor
	spec     CircuitSpec
	shots    int
	trace    []float64
	err      error
}

// objective executes the circuit at the candidate angles and estimates the
// cost expectation from the measured counts.
func (a *traceAccumulator) objective(angles []float64) float64 {
	if a.err != nil {
		return math.Inf(1)
	}

	counts, err := a.executor.Execute(a.ctx, a.spec, angles, a.shots)
	if err != nil {
		a.err = err
		return math.Inf(1)
	}

	cost := Expectation(counts, a.spec.Cost)
	a.trace = append(a.trace, cost)
	return cost
}

// status is checked by the optimizer before every evaluation; a latched
// executor failure aborts the search immediately.
func (a *traceAccumulator) status() (optimize.Status, error) {
	if a.err != nil {
		return optimize.Failure, a.err
	}
	return optimize.NotTerminated, nil
}

// evaluationBudget shrinks with the asset count because each evaluation is
// proportionally more expensive on wider circuits.
func evaluationBudget(n int) int {
	budget := 200 - 3*n
	if budget < 50 {
		return 50
	}
	return budget
}

// searchShots reduces the per-evaluation measurement budget during the angle
// search, trading estimator noise for loop speed. The final evaluation
// always uses the full requested budget.
func searchShots(total, n int) int {
	div := n / 10
	if div < 1 {
		div = 1
	}
	shots := total / div
	if shots < 128 {
		shots = 128
	}
	if shots > total {
		shots = total
	}
	return shots
}

func selectedCount(selection []int) int {
	count := 0
	for _, bit := range selection {
		if bit == 1 {
			count++
		}
	}
	return count
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
