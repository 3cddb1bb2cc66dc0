// Package pricestore loads historical prices for the analytics service from
// parquet partitions, InfluxDB or the Yahoo chart API.
package pricestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"trade-journal/internal/market"
)

// ErrNoData is returned when a source has nothing for a ticker.
var ErrNoData = errors.New("no price data")

// Store provides daily candles and intraday bars per ticker.
type Store interface {
	// Tickers lists the tickers the store can serve, sorted.
	Tickers(ctx context.Context) ([]string, error)
	// DailyCandles returns the ticker's full daily history, ascending.
	DailyCandles(ctx context.Context, ticker string) ([]market.Candle, error)
	// IntradayBars returns the ticker's bars on date, ascending.
	IntradayBars(ctx context.Context, ticker string, date time.Time) ([]market.Bar, error)
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// onDate keeps the bars that fall on date in loc, sorted by time.
func onDate(bars []market.Bar, date time.Time, loc *time.Location) []market.Bar {
	day := market.DayOf(date)
	out := make([]market.Bar, 0)
	for _, b := range bars {
		if market.DayOf(b.Time.In(loc)).Equal(day) && b.Valid() {
			out = append(out, b)
		}
	}
	sortBars(out)
	return out
}

// inLocation re-expresses bar times in loc so daily grouping follows the
// exchange calendar.
func inLocation(bars []market.Bar, loc *time.Location) []market.Bar {
	for i := range bars {
		bars[i].Time = bars[i].Time.In(loc)
	}
	return bars
}
