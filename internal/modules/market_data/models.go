package market_data

// MinSessions is the minimum number of valid trading sessions a ticker
// needs to survive the data quality filter. Tickers below it (recent
// IPOs, thin listings) are dropped rather than failing the request.
const MinSessions = 30

// TradingDaysPerYear is the annualization basis for daily series.
const TradingDaysPerYear = 252.0

// DailyPrice is a single stored OHLCV row.
type DailyPrice struct {
	Symbol string  `json:"symbol,omitempty"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// TimeSeries holds close prices for a set of symbols aligned on a shared
// date axis. Missing observations are NaN until the fill passes run.
type TimeSeries struct {
	Dates  []string
	Closes map[string][]float64
}

// PreparedData is the processed input the optimizers consume: aligned
// returns plus annualized moment estimates for the surviving tickers.
type PreparedData struct {
	Tickers        []string
	DroppedTickers []string

	// Dates are the aligned trading sessions. Closes and DailyReturns are
	// row-per-ticker in Tickers order; DailyReturns rows have len(Dates)-1
	// observations.
	Dates        []string
	Closes       [][]float64
	DailyReturns [][]float64

	MeanReturns       []float64
	CovMatrix         [][]float64
	CorrelationMatrix [][]float64
}

// AssetStats summarizes a single surviving ticker for display.
type AssetStats struct {
	Symbol            string   `json:"symbol"`
	AnnualReturn      float64  `json:"annual_return"`
	AnnualVolatility  float64  `json:"annual_volatility"`
	DistanceFromEMA   *float64 `json:"distance_from_ema_200,omitempty"`
	BollingerPosition *float64 `json:"bollinger_position,omitempty"`
}
