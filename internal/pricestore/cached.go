package pricestore

import (
	"context"
	"time"

	"trade-journal/internal/cache"
	"trade-journal/internal/market"
)

// Cached is a read-through cache in front of another store.
type Cached struct {
	next  Store
	cache *cache.Cache
	ttl   time.Duration
}

// NewCached caches next for ttl under "candles:" and "bars:" keys.
func NewCached(next Store, c *cache.Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl}
}

var _ Store = (*Cached)(nil)

func (c *Cached) Tickers(ctx context.Context) ([]string, error) {
	return cache.Fetch(ctx, c.cache, "tickers", c.ttl, c.next.Tickers)
}

func (c *Cached) DailyCandles(ctx context.Context, ticker string) ([]market.Candle, error) {
	ticker = NormalizeTicker(ticker)
	return cache.Fetch(ctx, c.cache, "candles:"+ticker, c.ttl, func(ctx context.Context) ([]market.Candle, error) {
		return c.next.DailyCandles(ctx, ticker)
	})
}

func (c *Cached) IntradayBars(ctx context.Context, ticker string, date time.Time) ([]market.Bar, error) {
	ticker = NormalizeTicker(ticker)
	key := "bars:" + ticker + ":" + market.DayOf(date).Format("2006-01-02")
	return cache.Fetch(ctx, c.cache, key, c.ttl, func(ctx context.Context) ([]market.Bar, error) {
		return c.next.IntradayBars(ctx, ticker, date)
	})
}

// Invalidate drops everything cached for ticker's daily history.
func (c *Cached) Invalidate(ticker string) error {
	return c.cache.Invalidate("candles:" + NormalizeTicker(ticker))
}
