package analytics

// Metrics holds the annualized headline figures for one allocation.
type Metrics struct {
	ExpectedReturn float64  `json:"expected_return"`
	Volatility     float64  `json:"volatility"`
	SharpeRatio    float64  `json:"sharpe_ratio"`
	CVaR95         *float64 `json:"cvar_95,omitempty"`
}

// Benchmark holds annualized figures for the market benchmark.
type Benchmark struct {
	Ticker         string  `json:"ticker"`
	ExpectedReturn float64 `json:"expected_return"`
	Volatility     float64 `json:"volatility"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
}

// BacktestPoint is one sampled step of the cumulative performance curves,
// in percent from the start of the window.
type BacktestPoint struct {
	Date      string  `json:"date"`
	Hybrid    float64 `json:"hybrid"`
	Classical float64 `json:"classical"`
	SPY       float64 `json:"spy"`
}

// FrontierPoint is one portfolio on the risk/return scatter. Type is
// "random" for the Dirichlet cloud and "frontier" for the optimized curve.
type FrontierPoint struct {
	Volatility     float64 `json:"volatility"`
	ExpectedReturn float64 `json:"expected_return"`
	Sharpe         float64 `json:"sharpe"`
	Type           string  `json:"type"`
}
