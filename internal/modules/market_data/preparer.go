package market_data

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/clients/yahoo"
	"github.com/aristath/quantfolio/pkg/formulas"
)

// ErrUnusableData marks preparation failures caused by the requested
// universe itself (unknown tickers, not enough shared history) rather than
// by infrastructure. Callers surface these as client errors.
var ErrUnusableData = errors.New("unusable market data")

// ffillLimit is the longest run of consecutive missing sessions the
// quality-check fill will bridge. Longer outages stay missing and count
// against the ticker's valid-session total.
const ffillLimit = 5

// staleAfterDays forces a refresh when the newest stored row is older
// than this many calendar days.
const staleAfterDays = 5

// historyClient is the slice of the Yahoo client the preparer needs.
type historyClient interface {
	History(symbol, period string) ([]yahoo.Candle, error)
}

// Preparer loads, cleans, and annualizes price history for a set of
// tickers ahead of an optimization run.
type Preparer struct {
	client historyClient
	repo   *PriceRepository
	log    zerolog.Logger
}

// NewPreparer creates a new data preparer.
func NewPreparer(client historyClient, repo *PriceRepository, log zerolog.Logger) *Preparer {
	return &Preparer{
		client: client,
		repo:   repo,
		log:    log.With().Str("component", "data_preparer").Logger(),
	}
}

// Prepare assembles PreparedData for the given tickers:
//
//  1. Load two years of stored closes per ticker, refreshing from Yahoo
//     Finance when the stored history is thin or stale.
//  2. Align all series on the union of trading dates.
//  3. Forward-fill gaps of up to ffillLimit sessions, then drop tickers
//     with fewer than MinSessions valid sessions (reported as dropped).
//  4. Complete the matrix for the survivors (unlimited forward-fill,
//     back-fill leading gaps) and compute daily simple returns.
//  5. Annualize: mean returns ×252, sample covariance ×252 followed by
//     Ledoit-Wolf shrinkage, plus the raw-return correlation matrix.
//
// At least two tickers must survive the quality filter or Prepare fails.
func (p *Preparer) Prepare(tickers []string) (*PreparedData, error) {
	if len(tickers) < 2 {
		return nil, fmt.Errorf("need at least 2 tickers, got %d", len(tickers))
	}

	series, unavailable, err := p.loadSeries(tickers)
	if err != nil {
		return nil, err
	}
	if len(unavailable) > 0 {
		return nil, fmt.Errorf("%w: invalid or unavailable tickers: %s", ErrUnusableData, strings.Join(unavailable, ", "))
	}

	ts := alignOnDates(tickers, series)

	for _, symbol := range tickers {
		forwardFill(ts.Closes[symbol], ffillLimit)
	}

	survivors, dropped := filterBySessionCount(tickers, ts)
	if len(survivors) < 2 {
		return nil, fmt.Errorf(
			"%w: too few tickers with sufficient history; removed due to insufficient data (<%d sessions): %s",
			ErrUnusableData, MinSessions, strings.Join(dropped, ", "),
		)
	}

	aligned := completeMatrix(survivors, ts)
	if len(aligned.Dates) < MinSessions {
		return nil, fmt.Errorf("%w: only %d overlapping trading sessions found across selected tickers", ErrUnusableData, len(aligned.Dates))
	}

	n := len(survivors)
	closes := make([][]float64, n)
	dailyReturns := make([][]float64, n)
	meanReturns := make([]float64, n)
	for i, symbol := range survivors {
		prices := aligned.Closes[symbol]
		closes[i] = prices
		dailyReturns[i] = formulas.CalculateReturns(prices)
		meanReturns[i] = formulas.Mean(dailyReturns[i]) * TradingDaysPerYear
	}

	sample, err := sampleCovariance(dailyReturns)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate covariance: %w", err)
	}
	for i := range sample {
		for j := range sample[i] {
			sample[i][j] *= TradingDaysPerYear
		}
	}
	cov, err := ledoitWolfShrink(sample)
	if err != nil {
		return nil, fmt.Errorf("failed to apply shrinkage: %w", err)
	}

	p.log.Info().
		Int("tickers", n).
		Int("dropped", len(dropped)).
		Int("sessions", len(aligned.Dates)).
		Msg("Prepared market data")

	return &PreparedData{
		Tickers:           survivors,
		DroppedTickers:    dropped,
		Dates:             aligned.Dates,
		Closes:            closes,
		DailyReturns:      dailyReturns,
		MeanReturns:       meanReturns,
		CovMatrix:         cov,
		CorrelationMatrix: correlationMatrix(dailyReturns),
	}, nil
}

// loadSeries fetches stored closes per ticker, refreshing from Yahoo when
// the history is thin or stale. Tickers with no data at all — stored or
// fetched — are reported as unavailable.
func (p *Preparer) loadSeries(tickers []string) (map[string][]DailyPrice, []string, error) {
	start := time.Now().AddDate(-2, 0, 0).Format("2006-01-02")
	staleCutoff := time.Now().AddDate(0, 0, -staleAfterDays).Format("2006-01-02")

	series := make(map[string][]DailyPrice, len(tickers))
	unavailable := []string{}

	for _, symbol := range tickers {
		rows, err := p.repo.GetCloses(symbol, start)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load closes for %s: %w", symbol, err)
		}

		if needsRefresh(rows, staleCutoff) {
			candles, fetchErr := p.client.History(symbol, yahoo.DefaultHistoryPeriod)
			switch {
			case fetchErr == nil:
				if err := p.repo.SyncDailyPrices(symbol, candles); err != nil {
					return nil, nil, fmt.Errorf("failed to store prices for %s: %w", symbol, err)
				}
				rows, err = p.repo.GetCloses(symbol, start)
				if err != nil {
					return nil, nil, fmt.Errorf("failed to load closes for %s: %w", symbol, err)
				}
			case len(rows) > 0:
				p.log.Warn().Err(fetchErr).Str("symbol", symbol).Msg("Refresh failed, using stored history")
			default:
				p.log.Warn().Err(fetchErr).Str("symbol", symbol).Msg("No price data available")
				unavailable = append(unavailable, symbol)
				continue
			}
		}

		if len(rows) == 0 {
			unavailable = append(unavailable, symbol)
			continue
		}
		series[symbol] = rows
	}

	return series, unavailable, nil
}

func needsRefresh(rows []DailyPrice, staleCutoff string) bool {
	if len(rows) < MinSessions {
		return true
	}
	return rows[len(rows)-1].Date < staleCutoff
}

// alignOnDates builds a TimeSeries over the union of all trading dates,
// with NaN where a ticker has no observation.
func alignOnDates(symbols []string, series map[string][]DailyPrice) TimeSeries {
	dateSet := make(map[string]bool)
	for _, rows := range series {
		for _, row := range rows {
			dateSet[row.Date] = true
		}
	}

	dates := make([]string, 0, len(dateSet))
	for date := range dateSet {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	index := make(map[string]int, len(dates))
	for i, date := range dates {
		index[date] = i
	}

	closes := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		xs := make([]float64, len(dates))
		for i := range xs {
			xs[i] = math.NaN()
		}
		for _, row := range series[symbol] {
			xs[index[row.Date]] = row.Close
		}
		closes[symbol] = xs
	}

	return TimeSeries{Dates: dates, Closes: closes}
}

// forwardFill replaces missing values in place with the last valid value,
// bridging at most `limit` consecutive gaps per run (unlimited when
// limit <= 0).
func forwardFill(xs []float64, limit int) {
	var lastValid float64
	hasLastValid := false
	gap := 0

	for i := range xs {
		if math.IsNaN(xs[i]) {
			gap++
			if hasLastValid && (limit <= 0 || gap <= limit) {
				xs[i] = lastValid
			}
			continue
		}
		lastValid = xs[i]
		hasLastValid = true
		gap = 0
	}
}

// backFill replaces leading missing values in place with the first valid
// value.
func backFill(xs []float64) {
	var nextValid float64
	hasNextValid := false

	for i := len(xs) - 1; i >= 0; i-- {
		if math.IsNaN(xs[i]) {
			if hasNextValid {
				xs[i] = nextValid
			}
			continue
		}
		nextValid = xs[i]
		hasNextValid = true
	}
}

// filterBySessionCount splits symbols into those with at least MinSessions
// valid observations and those without, preserving input order.
func filterBySessionCount(symbols []string, ts TimeSeries) (survivors, dropped []string) {
	survivors = make([]string, 0, len(symbols))
	dropped = []string{}

	for _, symbol := range symbols {
		valid := 0
		for _, v := range ts.Closes[symbol] {
			if !math.IsNaN(v) {
				valid++
			}
		}
		if valid < MinSessions {
			dropped = append(dropped, symbol)
		} else {
			survivors = append(survivors, symbol)
		}
	}

	return survivors, dropped
}

// completeMatrix restricts the series to dates where at least one survivor
// has data, then removes the remaining gaps with an unlimited forward-fill
// and a leading back-fill.
func completeMatrix(symbols []string, ts TimeSeries) TimeSeries {
	keep := make([]int, 0, len(ts.Dates))
	for i := range ts.Dates {
		for _, symbol := range symbols {
			if !math.IsNaN(ts.Closes[symbol][i]) {
				keep = append(keep, i)
				break
			}
		}
	}

	out := TimeSeries{
		Dates:  make([]string, len(keep)),
		Closes: make(map[string][]float64, len(symbols)),
	}
	for k, i := range keep {
		out.Dates[k] = ts.Dates[i]
	}

	for _, symbol := range symbols {
		xs := make([]float64, len(keep))
		for k, i := range keep {
			xs[k] = ts.Closes[symbol][i]
		}
		forwardFill(xs, 0)
		backFill(xs)
		out.Closes[symbol] = xs
	}

	return out
}
