package optimization

import (
	"context"

	"github.com/aristath/quantfolio/internal/modules/analytics"
	"github.com/aristath/quantfolio/internal/modules/market_data"
	"github.com/aristath/quantfolio/internal/modules/quantum"
)

// DataPreparer defines the contract for assembling aligned market data.
// Used by Service to enable testing with stubs.
type DataPreparer interface {
	Prepare(tickers []string) (*market_data.PreparedData, error)
}

// BackendRouter defines the contract for selecting the execution backend.
type BackendRouter interface {
	Select(ctx context.Context, assetCount int, preferSimulator bool, apiToken string) quantum.BackendConfig
}

// QuantumEngine defines the contract for the variational solve.
type QuantumEngine interface {
	Solve(
		ctx context.Context,
		returns []float64,
		cov [][]float64,
		riskTolerance float64,
		minAssets, maxAssets *int,
		backend quantum.BackendConfig,
	) (*quantum.SolveResult, error)
}

// WeightSolver defines the contract for classical weight optimization:
// the full-universe comparator solve and the selected-subset reweight.
type WeightSolver interface {
	Solve(returns []float64, cov [][]float64, riskTolerance float64) []float64
	Reweight(allocation []int, returns []float64, cov [][]float64, riskTolerance float64) []float64
}

// ResultAnalytics defines the contract for the non-fatal result analytics.
type ResultAnalytics interface {
	SPYBenchmark() analytics.Benchmark
	Backtest(hybridWeights, classicalWeights []float64, data *market_data.PreparedData) []analytics.BacktestPoint
	Frontier(meanReturns []float64, cov [][]float64) []analytics.FrontierPoint
}

// RunStore defines the contract for persisting and listing run records.
type RunStore interface {
	Save(run Run) error
	Recent(limit int) ([]Run, error)
}
