package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/clients/yahoo"
)

// Refresh windows: symbols with stored history only need the recent gap,
// new symbols need the full analysis window.
const (
	incrementalPeriod = "1mo"
	fullPeriod        = "2y"
)

// priceStore is the slice of the price repository the job needs.
type priceStore interface {
	ListSymbols() ([]string, error)
	LatestDate(symbol string) (string, error)
	SyncDailyPrices(symbol string, candles []yahoo.Candle) error
}

// historyClient is the slice of the Yahoo client the job needs.
type historyClient interface {
	History(symbol, period string) ([]yahoo.Candle, error)
}

// PriceSyncJob refreshes the stored daily history of every symbol that has
// ever been optimized. Keeping the table warm means requests rarely wait on
// live downloads.
type PriceSyncJob struct {
	repo   priceStore
	client historyClient
	log    zerolog.Logger
}

// NewPriceSyncJob creates a new price sync job
func NewPriceSyncJob(repo priceStore, client historyClient, log zerolog.Logger) *PriceSyncJob {
	return &PriceSyncJob{
		repo:   repo,
		client: client,
		log:    log.With().Str("job", "price_sync").Logger(),
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Run refreshes every stored symbol. Per-symbol failures are logged and
// skipped so one delisted ticker cannot starve the rest of the universe.
func (j *PriceSyncJob) Run() error {
	start := time.Now()

	symbols, err := j.repo.ListSymbols()
	if err != nil {
		return fmt.Errorf("failed to list symbols: %w", err)
	}
	if len(symbols) == 0 {
		j.log.Info().Msg("No stored symbols to refresh")
		return nil
	}

	synced, failed := 0, 0
	for _, symbol := range symbols {
		if err := j.syncSymbol(symbol); err != nil {
			j.log.Error().Err(err).Str("symbol", symbol).Msg("Symbol refresh failed")
			failed++
			continue
		}
		synced++
	}

	j.log.Info().
		Int("synced", synced).
		Int("failed", failed).
		Dur("elapsed", time.Since(start)).
		Msg("Price sync completed")

	return nil
}

func (j *PriceSyncJob) syncSymbol(symbol string) error {
	latest, err := j.repo.LatestDate(symbol)
	if err != nil {
		return fmt.Errorf("failed to read latest date: %w", err)
	}

	period := incrementalPeriod
	if latest == "" {
		period = fullPeriod
	}

	candles, err := j.client.History(symbol, period)
	if err != nil {
		return fmt.Errorf("failed to download history: %w", err)
	}

	if err := j.repo.SyncDailyPrices(symbol, candles); err != nil {
		return fmt.Errorf("failed to store candles: %w", err)
	}

	return nil
}
