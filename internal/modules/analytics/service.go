package analytics

import (
	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/clients/yahoo"
	"github.com/aristath/quantfolio/internal/modules/market_data"
	"github.com/aristath/quantfolio/pkg/formulas"
)

const (
	// benchmarkSymbol is the market benchmark every result is compared
	// against.
	benchmarkSymbol = "SPY"

	// minBenchmarkSessions is the minimum number of daily returns needed
	// before computed benchmark stats are trusted over the fallback.
	minBenchmarkSessions = 30

	// Long-run S&P 500 figures used when the benchmark download fails or
	// comes back too thin.
	fallbackBenchmarkReturn     = 0.10
	fallbackBenchmarkVolatility = 0.17

	// maxBacktestPoints caps how many samples the backtest curves carry;
	// longer series are downsampled for charting.
	maxBacktestPoints = 100
)

// historyClient is the slice of the market data client the analytics
// service needs.
type historyClient interface {
	History(symbol, period string) ([]yahoo.Candle, error)
}

// frontierSolver is the slice of the classical optimizer used to trace the
// efficient frontier.
type frontierSolver interface {
	Solve(returns []float64, cov [][]float64, riskTolerance float64) []float64
}

// Service produces the supporting analytics attached to an optimization
// result: benchmark stats, backtest curves, and the efficient frontier.
// All of its outputs degrade gracefully; none of them can fail a run.
type Service struct {
	client historyClient
	solver frontierSolver
	log    zerolog.Logger
}

// NewService creates an analytics service.
func NewService(client historyClient, solver frontierSolver, log zerolog.Logger) *Service {
	return &Service{
		client: client,
		solver: solver,
		log:    log.With().Str("component", "analytics").Logger(),
	}
}

// SPYBenchmark returns annualized stats for the market benchmark over the
// default history window. When the download fails or returns fewer than
// minBenchmarkSessions daily returns, long-run fallback constants are used
// instead so the comparison never blocks a result.
func (s *Service) SPYBenchmark() Benchmark {
	daily := benchmarkDailyReturns(s.fetchBenchmarkCandles())
	if len(daily) < minBenchmarkSessions {
		s.log.Warn().
			Int("sessions", len(daily)).
			Msg("Benchmark history too thin, using long-run fallback stats")
		return Benchmark{
			Ticker:         benchmarkSymbol,
			ExpectedReturn: fallbackBenchmarkReturn,
			Volatility:     fallbackBenchmarkVolatility,
			SharpeRatio:    round6((fallbackBenchmarkReturn - RiskFreeRate) / fallbackBenchmarkVolatility),
		}
	}

	annualReturn := formulas.Mean(daily) * formulas.TradingDaysPerYear
	annualVolatility := formulas.AnnualizedVolatility(daily)
	sharpe := 0.0
	if annualVolatility > minVolatility {
		sharpe = (annualReturn - RiskFreeRate) / annualVolatility
	}

	return Benchmark{
		Ticker:         benchmarkSymbol,
		ExpectedReturn: round6(annualReturn),
		Volatility:     round6(annualVolatility),
		SharpeRatio:    round6(sharpe),
	}
}

// Backtest applies fixed hybrid and classical weights to the historical
// daily returns and compounds them into cumulative percentage curves,
// downsampled for charting. The benchmark is aligned to the same sessions
// by carrying its most recent prior return forward; when benchmark data is
// unavailable its curve renders flat at zero.
func (s *Service) Backtest(hybridWeights, classicalWeights []float64, data *market_data.PreparedData) []BacktestPoint {
	if data == nil || len(data.Dates) < 2 {
		return []BacktestPoint{}
	}

	hybrid := portfolioDailyReturns(renormalized(hybridWeights), data.DailyReturns)
	classical := portfolioDailyReturns(renormalized(classicalWeights), data.DailyReturns)

	// Daily returns describe the second session onward.
	sessions := data.Dates[1:]
	spy := s.benchmarkReturnsFor(sessions)

	hybridCum := cumulativePct(hybrid)
	classicalCum := cumulativePct(classical)
	spyCum := cumulativePct(spy)

	step := len(sessions) / maxBacktestPoints
	if step < 1 {
		step = 1
	}

	points := make([]BacktestPoint, 0, len(sessions)/step+1)
	for i := 0; i < len(sessions); i += step {
		points = append(points, BacktestPoint{
			Date:      sessions[i],
			Hybrid:    round2(hybridCum[i]),
			Classical: round2(classicalCum[i]),
			SPY:       round2(spyCum[i]),
		})
	}
	return points
}

// fetchBenchmarkCandles downloads the benchmark history, returning nil on
// failure so callers fall back instead of erroring.
func (s *Service) fetchBenchmarkCandles() []yahoo.Candle {
	candles, err := s.client.History(benchmarkSymbol, yahoo.DefaultHistoryPeriod)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", benchmarkSymbol).Msg("Benchmark download failed")
		return nil
	}
	return candles
}

// benchmarkDailyReturns converts benchmark candles into daily returns.
func benchmarkDailyReturns(candles []yahoo.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return formulas.CalculateReturns(closes)
}

// benchmarkReturnsFor aligns benchmark daily returns to the portfolio's
// sessions. Each session takes the benchmark return at the largest
// benchmark date not after it; sessions before the first benchmark return
// get zero.
func (s *Service) benchmarkReturnsFor(dates []string) []float64 {
	out := make([]float64, len(dates))

	candles := s.fetchBenchmarkCandles()
	if len(candles) < 2 {
		return out
	}

	type datedReturn struct {
		date string
		ret  float64
	}
	series := make([]datedReturn, 0, len(candles)-1)
	prev := candles[0].Close
	for _, c := range candles[1:] {
		if prev > 0 {
			series = append(series, datedReturn{
				date: c.Date.Format("2006-01-02"),
				ret:  (c.Close - prev) / prev,
			})
		}
		prev = c.Close
	}

	p := -1
	for i, date := range dates {
		for p+1 < len(series) && series[p+1].date <= date {
			p++
		}
		if p >= 0 {
			out[i] = series[p].ret
		}
	}
	return out
}

// cumulativePct compounds daily returns into cumulative percentages.
func cumulativePct(returns []float64) []float64 {
	out := make([]float64, len(returns))
	growth := 1.0
	for i, r := range returns {
		growth *= 1 + r
		out[i] = (growth - 1) * 100
	}
	return out
}
