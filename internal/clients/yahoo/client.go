package yahoo

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// DefaultHistoryPeriod covers roughly 500 trading sessions — enough for
// stable covariance estimates while staying recent.
const DefaultHistoryPeriod = "2y"

// quoteWindow is the short lookback used for batch quotes and symbol
// validation. A few sessions is enough to confirm a symbol exists and
// grab its latest close.
const quoteWindow = "5d"

const defaultMaxRetries = 3

// Client fetches market data from Yahoo Finance using go-yfinance.
type Client struct {
	maxRetries int
	log        zerolog.Logger
}

// NewClient creates a new Yahoo Finance client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		maxRetries: defaultMaxRetries,
		log:        log.With().Str("client", "yahoo").Logger(),
	}
}

// History fetches daily OHLCV bars for a symbol, adjusted for splits and
// dividends. An empty period defaults to DefaultHistoryPeriod. Supported
// periods: 1d, 5d, 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y, ytd, max.
func (c *Client) History(symbol, period string) ([]Candle, error) {
	if period == "" {
		period = DefaultHistoryPeriod
	}
	yahooSymbol := normalizeSymbol(symbol)

	var bars []models.Bar
	err := c.withRetry("history", yahooSymbol, func() error {
		t, err := ticker.New(yahooSymbol)
		if err != nil {
			return fmt.Errorf("failed to create ticker: %w", err)
		}
		defer t.Close()

		bars, err = t.History(models.HistoryParams{
			Period:     period,
			Interval:   "1d",
			AutoAdjust: true,
		})
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}
		if len(bars) == 0 {
			return fmt.Errorf("no price data returned for %s", yahooSymbol)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(bars))
	for _, bar := range bars {
		candles = append(candles, Candle{
			Date:     bar.Date,
			Open:     bar.Open,
			High:     bar.High,
			Low:      bar.Low,
			Close:    bar.Close,
			Volume:   int64(bar.Volume),
			AdjClose: bar.AdjClose,
		})
	}

	c.log.Debug().
		Str("symbol", yahooSymbol).
		Str("period", period).
		Int("bars", len(candles)).
		Msg("Fetched price history")

	return candles, nil
}

// LastCloses fetches the most recent closing price for each symbol in a
// single batch request. Symbols that fail are logged and omitted from the
// result rather than failing the batch.
func (c *Client) LastCloses(symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	yahooSymbols := normalizeSymbols(symbols)

	params := models.DefaultDownloadParams()
	params.Symbols = yahooSymbols
	params.Period = quoteWindow
	params.Interval = "1d"

	result, err := multi.Download(yahooSymbols, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to download batch quotes: %w", err)
	}

	quotes := make(map[string]float64, len(yahooSymbols))
	for _, symbol := range yahooSymbols {
		if bars, ok := result.Data[symbol]; ok && len(bars) > 0 {
			quotes[symbol] = bars[len(bars)-1].Close
			continue
		}
		if err, ok := result.Errors[symbol]; ok {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to get quote for symbol")
		}
	}

	return quotes, nil
}

// Validate checks which symbols Yahoo Finance recognizes. A symbol is
// considered valid when the last few sessions return at least two bars,
// which filters out both unknown tickers and freshly listed shells. A
// total download failure marks every symbol invalid rather than erroring,
// so the endpoint stays usable for inline form validation.
func (c *Client) Validate(symbols []string) (valid []string, invalid []string) {
	valid = []string{}
	invalid = []string{}
	if len(symbols) == 0 {
		return valid, invalid
	}

	yahooSymbols := normalizeSymbols(symbols)

	params := models.DefaultDownloadParams()
	params.Symbols = yahooSymbols
	params.Period = quoteWindow
	params.Interval = "1d"

	result, err := multi.Download(yahooSymbols, &params)
	if err != nil {
		c.log.Warn().Err(err).Msg("Validation download failed, marking all symbols invalid")
		return valid, yahooSymbols
	}

	for _, symbol := range yahooSymbols {
		if bars, ok := result.Data[symbol]; ok && len(bars) >= 2 {
			valid = append(valid, symbol)
		} else {
			invalid = append(invalid, symbol)
		}
	}

	return valid, invalid
}

// withRetry runs fn up to maxRetries times with exponential backoff.
func (c *Client) withRetry(op, symbol string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := fn(); err != nil {
			lastErr = err
			if attempt < c.maxRetries-1 {
				waitTime := time.Duration(1<<uint(attempt)) * time.Second
				c.log.Warn().
					Err(err).
					Str("op", op).
					Str("symbol", symbol).
					Dur("wait", waitTime).
					Msg("Yahoo Finance request failed, retrying")
				time.Sleep(waitTime)
			}
			continue
		}
		return nil
	}
	return lastErr
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, normalizeSymbol(s))
	}
	return out
}
