package market_data

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quantfolio/internal/clients/yahoo"
)

type stubHistoryClient struct {
	history map[string][]yahoo.Candle
	errs    map[string]error
	calls   []string
}

func (s *stubHistoryClient) History(symbol, period string) ([]yahoo.Candle, error) {
	s.calls = append(s.calls, symbol)
	if err, ok := s.errs[symbol]; ok {
		return nil, err
	}
	return s.history[symbol], nil
}

func lastNDays(n int) []string {
	dates := make([]string, n)
	now := time.Now()
	for i := 0; i < n; i++ {
		dates[i] = now.AddDate(0, 0, -(n - 1 - i)).Format("2006-01-02")
	}
	return dates
}

func candlesFor(dates []string, closes []float64) []yahoo.Candle {
	candles := make([]yahoo.Candle, len(dates))
	for i, date := range dates {
		candles[i] = candleOn(date, closes[i])
	}
	return candles
}

// alternatingCloses builds a price path whose daily returns alternate
// between first and second.
func alternatingCloses(start float64, n int, first, second float64) []float64 {
	closes := make([]float64, n)
	price := start
	for i := 0; i < n; i++ {
		closes[i] = price
		if i%2 == 0 {
			price *= 1 + first
		} else {
			price *= 1 + second
		}
	}
	return closes
}

func TestPreparer_PreparesAlignedMoments(t *testing.T) {
	db := setupPriceTestDB(t)
	defer db.Close()

	repo := NewPriceRepository(db, zerolog.Nop())
	dates := lastNDays(40)

	// Anti-phase return paths: when AAA is up 2%, BBB is down 1%.
	require.NoError(t, repo.SyncDailyPrices("AAA", candlesFor(dates, alternatingCloses(100, 40, 0.02, -0.01))))
	require.NoError(t, repo.SyncDailyPrices("BBB", candlesFor(dates, alternatingCloses(50, 40, -0.01, 0.02))))

	client := &stubHistoryClient{}
	p := NewPreparer(client, repo, zerolog.Nop())

	data, err := p.Prepare([]string{"AAA", "BBB"})
	require.NoError(t, err)

	assert.Empty(t, client.calls, "fresh stored history should not trigger a refresh")
	assert.Equal(t, []string{"AAA", "BBB"}, data.Tickers)
	assert.Empty(t, data.DroppedTickers)

	require.Len(t, data.Dates, 40)
	require.Len(t, data.DailyReturns, 2)
	assert.Len(t, data.DailyReturns[0], 39)

	require.Len(t, data.MeanReturns, 2)
	assert.Greater(t, data.MeanReturns[0], 0.0)
	assert.Greater(t, data.MeanReturns[1], 0.0)

	require.Len(t, data.CovMatrix, 2)
	assert.InDelta(t, data.CovMatrix[0][1], data.CovMatrix[1][0], 1e-12, "covariance must be symmetric")
	assert.Greater(t, data.CovMatrix[0][0], 0.0)
	assert.Greater(t, data.CovMatrix[1][1], 0.0)

	require.Len(t, data.CorrelationMatrix, 2)
	assert.Equal(t, 1.0, data.CorrelationMatrix[0][0])
	assert.Less(t, data.CorrelationMatrix[0][1], 0.0, "anti-phase paths should be negatively correlated")
}

func TestPreparer_RefreshesWhenHistoryThin(t *testing.T) {
	db := setupPriceTestDB(t)
	defer db.Close()

	repo := NewPriceRepository(db, zerolog.Nop())
	dates := lastNDays(60)

	client := &stubHistoryClient{
		history: map[string][]yahoo.Candle{
			"AAA": candlesFor(dates, alternatingCloses(100, 60, 0.01, 0.005)),
			"BBB": candlesFor(dates, alternatingCloses(200, 60, 0.005, 0.01)),
		},
	}
	p := NewPreparer(client, repo, zerolog.Nop())

	data, err := p.Prepare([]string{"AAA", "BBB"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"AAA", "BBB"}, client.calls)
	assert.Equal(t, []string{"AAA", "BBB"}, data.Tickers)

	symbols, err := repo.ListSymbols()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, symbols, "fetched history should be persisted")
}

func TestPreparer_DropsTickersWithShortHistory(t *testing.T) {
	db := setupPriceTestDB(t)
	defer db.Close()

	repo := NewPriceRepository(db, zerolog.Nop())
	dates := lastNDays(40)

	require.NoError(t, repo.SyncDailyPrices("AAA", candlesFor(dates, alternatingCloses(100, 40, 0.02, -0.01))))
	require.NoError(t, repo.SyncDailyPrices("BBB", candlesFor(dates, alternatingCloses(50, 40, -0.01, 0.02))))
	// CCC looks like a fresh IPO: only 10 sessions, and the refresh fails.
	short := lastNDays(10)
	require.NoError(t, repo.SyncDailyPrices("CCC", candlesFor(short, alternatingCloses(20, 10, 0.01, 0.01))))

	client := &stubHistoryClient{errs: map[string]error{"CCC": errors.New("upstream down")}}
	p := NewPreparer(client, repo, zerolog.Nop())

	data, err := p.Prepare([]string{"AAA", "BBB", "CCC"})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, data.Tickers)
	assert.Equal(t, []string{"CCC"}, data.DroppedTickers)
	require.Len(t, data.MeanReturns, 2)
	require.Len(t, data.CovMatrix, 2)
}

func TestPreparer_FailsWhenFewerThanTwoSurvive(t *testing.T) {
	db := setupPriceTestDB(t)
	defer db.Close()

	repo := NewPriceRepository(db, zerolog.Nop())

	require.NoError(t, repo.SyncDailyPrices("AAA", candlesFor(lastNDays(40), alternatingCloses(100, 40, 0.02, -0.01))))
	require.NoError(t, repo.SyncDailyPrices("BBB", candlesFor(lastNDays(10), alternatingCloses(50, 10, 0.01, 0.01))))

	client := &stubHistoryClient{errs: map[string]error{"BBB": errors.New("upstream down")}}
	p := NewPreparer(client, repo, zerolog.Nop())

	_, err := p.Prepare([]string{"AAA", "BBB"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnusableData)
	assert.Contains(t, err.Error(), "too few tickers")
	assert.Contains(t, err.Error(), "BBB")
}

func TestPreparer_FailsOnUnavailableTicker(t *testing.T) {
	db := setupPriceTestDB(t)
	defer db.Close()

	repo := NewPriceRepository(db, zerolog.Nop())
	require.NoError(t, repo.SyncDailyPrices("AAA", candlesFor(lastNDays(40), alternatingCloses(100, 40, 0.02, -0.01))))

	client := &stubHistoryClient{errs: map[string]error{"NOPE": errors.New("not found")}}
	p := NewPreparer(client, repo, zerolog.Nop())

	_, err := p.Prepare([]string{"AAA", "NOPE"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnusableData)
	assert.Contains(t, err.Error(), "invalid or unavailable tickers")
	assert.Contains(t, err.Error(), "NOPE")
}

func TestPreparer_RequiresAtLeastTwoTickers(t *testing.T) {
	db := setupPriceTestDB(t)
	defer db.Close()

	repo := NewPriceRepository(db, zerolog.Nop())
	p := NewPreparer(&stubHistoryClient{}, repo, zerolog.Nop())

	_, err := p.Prepare([]string{"AAA"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "need at least 2 tickers")
}

func TestForwardFill_BridgesShortGapsOnly(t *testing.T) {
	nan := math.NaN()
	xs := []float64{1, nan, nan, nan, nan, nan, nan, nan, 2}

	forwardFill(xs, 5)

	for i := 1; i <= 5; i++ {
		assert.Equal(t, 1.0, xs[i], "gap position %d should be filled", i)
	}
	assert.True(t, math.IsNaN(xs[6]), "gap beyond the limit should stay missing")
	assert.True(t, math.IsNaN(xs[7]))
	assert.Equal(t, 2.0, xs[8])
}

func TestForwardFill_UnlimitedWhenNoLimit(t *testing.T) {
	nan := math.NaN()
	xs := []float64{1, nan, nan, nan, nan, nan, nan, nan, 2}

	forwardFill(xs, 0)

	for i := 1; i <= 7; i++ {
		assert.Equal(t, 1.0, xs[i])
	}
}

func TestBackFill_FillsLeadingGaps(t *testing.T) {
	nan := math.NaN()
	xs := []float64{nan, nan, 3, 4}

	backFill(xs)

	assert.Equal(t, []float64{3, 3, 3, 4}, xs)
}

func TestAlignOnDates_UnionWithMissingMarkers(t *testing.T) {
	series := map[string][]DailyPrice{
		"AAA": {{Date: "2024-01-02", Close: 10}, {Date: "2024-01-03", Close: 11}},
		"BBB": {{Date: "2024-01-03", Close: 20}, {Date: "2024-01-04", Close: 21}},
	}

	ts := alignOnDates([]string{"AAA", "BBB"}, series)

	assert.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04"}, ts.Dates)
	assert.Equal(t, 10.0, ts.Closes["AAA"][0])
	assert.Equal(t, 11.0, ts.Closes["AAA"][1])
	assert.True(t, math.IsNaN(ts.Closes["AAA"][2]))
	assert.True(t, math.IsNaN(ts.Closes["BBB"][0]))
	assert.Equal(t, 21.0, ts.Closes["BBB"][2])
}

func TestCompleteMatrix_DropsEmptyRowsAndFills(t *testing.T) {
	nan := math.NaN()
	ts := TimeSeries{
		Dates: []string{"2024-01-02", "2024-01-03", "2024-01-04"},
		Closes: map[string][]float64{
			"AAA": {nan, 10, 11},
			"BBB": {nan, nan, 30},
		},
	}

	out := completeMatrix([]string{"AAA", "BBB"}, ts)

	assert.Equal(t, []string{"2024-01-03", "2024-01-04"}, out.Dates, "all-missing rows are dropped")
	assert.Equal(t, []float64{10, 11}, out.Closes["AAA"])
	assert.Equal(t, []float64{30, 30}, out.Closes["BBB"], "leading gap is back-filled")
}

func TestBuildAssetStats(t *testing.T) {
	db := setupPriceTestDB(t)
	defer db.Close()

	repo := NewPriceRepository(db, zerolog.Nop())
	dates := lastNDays(40)

	require.NoError(t, repo.SyncDailyPrices("AAA", candlesFor(dates, alternatingCloses(100, 40, 0.02, -0.01))))
	require.NoError(t, repo.SyncDailyPrices("BBB", candlesFor(dates, alternatingCloses(50, 40, -0.01, 0.02))))

	p := NewPreparer(&stubHistoryClient{}, repo, zerolog.Nop())
	data, err := p.Prepare([]string{"AAA", "BBB"})
	require.NoError(t, err)

	stats := BuildAssetStats(data)

	require.Len(t, stats, 2)
	assert.Equal(t, "AAA", stats[0].Symbol)
	assert.Greater(t, stats[0].AnnualReturn, 0.0)
	assert.Greater(t, stats[0].AnnualVolatility, 0.0)
	require.NotNil(t, stats[0].DistanceFromEMA)
}
