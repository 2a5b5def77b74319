package market_data

import (
	"github.com/aristath/quantfolio/pkg/formulas"
)

// emaLength is the moving-average window used for the trend distance stat.
const emaLength = 200

// Bollinger band parameters for the band-position stat.
const (
	bollingerLength = 20
	bollingerStdDev = 2.0
)

// BuildAssetStats computes per-ticker display statistics from prepared
// data: geometric annualized return, annualized volatility, the percentage
// distance of the last close from the 200-day EMA, and where the last
// close sits within the 20-day Bollinger bands.
func BuildAssetStats(data *PreparedData) []AssetStats {
	stats := make([]AssetStats, 0, len(data.Tickers))
	for i, symbol := range data.Tickers {
		s := AssetStats{
			Symbol:           symbol,
			AnnualReturn:     formulas.CalculateAnnualReturn(data.DailyReturns[i]),
			AnnualVolatility: formulas.AnnualizedVolatility(data.DailyReturns[i]),
			DistanceFromEMA:  formulas.CalculateDistanceFromEMA(data.Closes[i], emaLength),
		}
		if pos := formulas.CalculateBollingerPosition(data.Closes[i], bollingerLength, bollingerStdDev); pos != nil {
			s.BollingerPosition = &pos.Position
		}
		stats = append(stats, s)
	}
	return stats
}
