package optimization

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/quantfolio/internal/modules/analytics"
	"github.com/aristath/quantfolio/internal/modules/market_data"
)

// Request size limits.
const (
	MinTickers = 2
	MaxTickers = 50
)

// Request is one portfolio optimization job.
type Request struct {
	Tickers       []string `json:"tickers"`
	RiskTolerance float64  `json:"risk_tolerance"`

	// Optional cardinality bounds on the number of selected assets.
	MinAssets *int `json:"min_assets,omitempty"`
	MaxAssets *int `json:"max_assets,omitempty"`

	// IBMAPIKey is an optional request-scoped hardware credential.
	IBMAPIKey string `json:"ibm_api_key,omitempty"`

	// UseSimulatorFallback skips hardware routing entirely.
	UseSimulatorFallback bool `json:"use_simulator_fallback"`
}

// Normalize trims, uppercases, and deduplicates the ticker list in place,
// preserving first-seen order and dropping blanks.
func (r *Request) Normalize() {
	seen := make(map[string]bool, len(r.Tickers))
	cleaned := make([]string, 0, len(r.Tickers))
	for _, t := range r.Tickers {
		symbol := strings.ToUpper(strings.TrimSpace(t))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		cleaned = append(cleaned, symbol)
	}
	r.Tickers = cleaned
}

// Validate checks a normalized request. Cardinality bounds are validated
// here so the optimization core never sees malformed ones.
func (r *Request) Validate() error {
	if len(r.Tickers) < MinTickers {
		return fmt.Errorf("at least %d valid tickers are required", MinTickers)
	}
	if len(r.Tickers) > MaxTickers {
		return fmt.Errorf("maximum of %d tickers allowed", MaxTickers)
	}
	if r.RiskTolerance < 0 || r.RiskTolerance > 1 {
		return fmt.Errorf("risk_tolerance must be between 0 and 1")
	}
	if r.MinAssets != nil && *r.MinAssets < 1 {
		return fmt.Errorf("min_assets must be at least 1")
	}
	if r.MaxAssets != nil && *r.MaxAssets < 1 {
		return fmt.Errorf("max_assets must be at least 1")
	}
	if r.MinAssets != nil && r.MaxAssets != nil && *r.MinAssets > *r.MaxAssets {
		return fmt.Errorf("min_assets cannot exceed max_assets")
	}
	if r.MaxAssets != nil && *r.MaxAssets > len(r.Tickers) {
		return fmt.Errorf("max_assets cannot exceed the number of tickers")
	}
	if r.MinAssets != nil && *r.MinAssets > len(r.Tickers) {
		return fmt.Errorf("min_assets cannot exceed the number of tickers")
	}
	return nil
}

// Allocation is one strategy's result: percentage weights per ticker plus
// the annualized metrics of the underlying weight vector.
type Allocation struct {
	Weights map[string]float64 `json:"weights"`
	Metrics analytics.Metrics  `json:"metrics"`
}

// BackendInfo describes the execution backend a run used.
type BackendInfo struct {
	Name                  string `json:"name"`
	UsedSimulatorFallback bool   `json:"used_simulator_fallback"`
	FallbackReason        string `json:"fallback_reason,omitempty"`
	IsHardware            bool   `json:"is_hardware"`
}

// Response is the full result of one optimization run.
type Response struct {
	RunID          string   `json:"run_id"`
	Tickers        []string `json:"tickers"`
	DroppedTickers []string `json:"dropped_tickers"`

	Hybrid    Allocation `json:"hybrid"`
	Classical Allocation `json:"classical"`

	// SelectedTickers is the subset the quantum stage picked, after
	// cardinality repair. Energy is its objective value under the
	// penalized QUBO; lower is better.
	SelectedTickers []string `json:"selected_tickers"`
	Energy          float64  `json:"energy"`

	Benchmark         analytics.Benchmark       `json:"benchmark"`
	CorrelationMatrix [][]float64               `json:"correlation_matrix"`
	AssetStats        []market_data.AssetStats  `json:"asset_stats"`
	Backtest          []analytics.BacktestPoint `json:"backtest"`
	Frontier          []analytics.FrontierPoint `json:"efficient_frontier"`
	Convergence       []float64                 `json:"convergence"`
	RawCounts         map[string]int            `json:"raw_counts"`
	Backend           BackendInfo               `json:"backend"`
}

// Run is the persisted audit record of one optimization.
type Run struct {
	ID               string             `json:"id"`
	CreatedAt        time.Time          `json:"created_at"`
	Tickers          []string           `json:"tickers"`
	RiskTolerance    float64            `json:"risk_tolerance"`
	Backend          string             `json:"backend"`
	Energy           float64            `json:"energy"`
	HybridWeights    map[string]float64 `json:"hybrid_weights"`
	ClassicalWeights map[string]float64 `json:"classical_weights"`
}
