package optimization

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/modules/analytics"
	"github.com/aristath/quantfolio/internal/modules/market_data"
	"github.com/aristath/quantfolio/internal/modules/quantum"
)

// Service orchestrates one optimization request end to end: data
// preparation, the classical comparator solve, backend routing, the
// variational quantum stage, cardinality repair, hybrid reweighting, and
// the attached analytics. Core-stage failures are fatal for the request;
// analytics and persistence failures degrade.
type Service struct {
	preparer  DataPreparer
	router    BackendRouter
	engine    QuantumEngine
	solver    WeightSolver
	analytics ResultAnalytics
	store     RunStore
	log       zerolog.Logger
}

// NewService creates an optimization service.
func NewService(
	preparer DataPreparer,
	router BackendRouter,
	engine QuantumEngine,
	solver WeightSolver,
	analytics ResultAnalytics,
	store RunStore,
	log zerolog.Logger,
) *Service {
	return &Service{
		preparer:  preparer,
		router:    router,
		engine:    engine,
		solver:    solver,
		analytics: analytics,
		store:     store,
		log:       log.With().Str("component", "optimization_service").Logger(),
	}
}

// Optimize runs the full hybrid pipeline for a normalized, validated
// request.
func (s *Service) Optimize(ctx context.Context, req Request) (*Response, error) {
	s.log.Info().
		Strs("tickers", req.Tickers).
		Float64("risk_tolerance", req.RiskTolerance).
		Bool("use_simulator_fallback", req.UseSimulatorFallback).
		Msg("Starting portfolio optimization")

	// 1. Prepare aligned, annualized market data.
	data, err := s.preparer.Prepare(req.Tickers)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare market data: %w", err)
	}

	n := len(data.Tickers)
	minAssets, maxAssets := clampBounds(req.MinAssets, req.MaxAssets, n, s.log)

	// 2. Classical comparator on the full universe.
	classicalWeights := s.solver.Solve(data.MeanReturns, data.CovMatrix, req.RiskTolerance)

	// 3. Route the quantum stage and run it.
	backend := s.router.Select(ctx, n, req.UseSimulatorFallback, req.IBMAPIKey)
	defer func() {
		if err := backend.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close backend")
		}
	}()

	s.log.Info().
		Str("backend", backend.Name).
		Bool("is_hardware", backend.IsHardware()).
		Msg("Backend selected")

	result, err := s.engine.Solve(ctx, data.MeanReturns, data.CovMatrix, req.RiskTolerance, minAssets, maxAssets, backend)
	if err != nil {
		return nil, fmt.Errorf("quantum optimization failed: %w", err)
	}

	// 4. Repair the selection against the cardinality bounds and solve
	// classical weights on the selected subset.
	selection := result.Selection
	RepairCardinality(selection, data.MeanReturns, minAssets, maxAssets)
	hybridWeights := s.solver.Reweight(selection, data.MeanReturns, data.CovMatrix, req.RiskTolerance)

	q := quantum.BuildQUBO(data.MeanReturns, data.CovMatrix, req.RiskTolerance, minAssets, maxAssets)
	energy := quantum.EvaluateQUBO(q, selection)

	// 5. Metrics for both allocations.
	hybridMetrics := analytics.PortfolioMetrics(hybridWeights, data.MeanReturns, data.CovMatrix, data.DailyReturns)
	classicalMetrics := analytics.PortfolioMetrics(classicalWeights, data.MeanReturns, data.CovMatrix, data.DailyReturns)

	// 6. Attached analytics; none of these can fail the run.
	benchmark := s.analytics.SPYBenchmark()
	backtest := s.analytics.Backtest(hybridWeights, classicalWeights, data)
	frontier := s.analytics.Frontier(data.MeanReturns, data.CovMatrix)
	assetStats := market_data.BuildAssetStats(data)

	resp := &Response{
		RunID:             uuid.New().String(),
		Tickers:           data.Tickers,
		DroppedTickers:    data.DroppedTickers,
		Hybrid:            Allocation{Weights: weightsToPct(data.Tickers, hybridWeights), Metrics: hybridMetrics},
		Classical:         Allocation{Weights: weightsToPct(data.Tickers, classicalWeights), Metrics: classicalMetrics},
		SelectedTickers:   selectedTickers(data.Tickers, selection),
		Energy:            roundTo(energy, 6),
		Benchmark:         benchmark,
		CorrelationMatrix: data.CorrelationMatrix,
		AssetStats:        assetStats,
		Backtest:          backtest,
		Frontier:          frontier,
		Convergence:       roundedTrace(result.Convergence),
		RawCounts:         result.Counts,
		Backend: BackendInfo{
			Name:                  backend.Name,
			UsedSimulatorFallback: backend.UsedSimulatorFallback,
			FallbackReason:        backend.FallbackReason,
			IsHardware:            backend.IsHardware(),
		},
	}

	// 7. Persist the audit record. A failed write loses history, not the
	// result.
	run := Run{
		ID:               resp.RunID,
		CreatedAt:        time.Now().UTC(),
		Tickers:          data.Tickers,
		RiskTolerance:    req.RiskTolerance,
		Backend:          backend.Name,
		Energy:           resp.Energy,
		HybridWeights:    resp.Hybrid.Weights,
		ClassicalWeights: resp.Classical.Weights,
	}
	if err := s.store.Save(run); err != nil {
		s.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to persist optimization run")
	}

	s.log.Info().
		Str("run_id", resp.RunID).
		Int("selected", len(resp.SelectedTickers)).
		Float64("energy", resp.Energy).
		Float64("hybrid_sharpe", hybridMetrics.SharpeRatio).
		Float64("classical_sharpe", classicalMetrics.SharpeRatio).
		Msg("Optimization completed")

	return resp, nil
}

// clampBounds caps cardinality bounds at the surviving universe size. The
// request validator checks bounds against the requested tickers, but the
// data quality filter can shrink the universe afterwards.
func clampBounds(minAssets, maxAssets *int, n int, log zerolog.Logger) (*int, *int) {
	if minAssets != nil && *minAssets > n {
		clamped := n
		log.Warn().
			Int("min_assets", *minAssets).
			Int("universe", n).
			Msg("Clamping min_assets to the surviving universe size")
		minAssets = &clamped
	}
	if maxAssets != nil && *maxAssets > n {
		clamped := n
		maxAssets = &clamped
	}
	return minAssets, maxAssets
}

// weightsToPct converts a weight vector into a ticker → percentage map.
func weightsToPct(tickers []string, weights []float64) map[string]float64 {
	pct := make(map[string]float64, len(tickers))
	for i, t := range tickers {
		pct[t] = roundTo(weights[i]*100, 2)
	}
	return pct
}

// selectedTickers lists the tickers whose selection bit is set.
func selectedTickers(tickers []string, selection []int) []string {
	selected := make([]string, 0, len(tickers))
	for i, bit := range selection {
		if bit == 1 {
			selected = append(selected, tickers[i])
		}
	}
	return selected
}

// roundedTrace rounds every convergence sample for the response payload.
func roundedTrace(trace []float64) []float64 {
	rounded := make([]float64, len(trace))
	for i, v := range trace {
		rounded[i] = roundTo(v, 6)
	}
	return rounded
}

func roundTo(value float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(value*multiplier) / multiplier
}
