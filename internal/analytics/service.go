// Package analytics serves ticker quotes and gap analysis over the price
// store, caching derived results.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"trade-journal/internal/cache"
	"trade-journal/internal/config"
	"trade-journal/internal/gaps"
	"trade-journal/internal/market"
	"trade-journal/internal/pricestore"

	"go.uber.org/zap"
)

const (
	DefaultTickerLimit = 100
	DefaultQuoteLimit  = 100
	DefaultGapLimit    = 50
)

// ErrInvalidInput marks a request the caller must fix.
var ErrInvalidInput = errors.New("invalid input")

// Service answers analytics queries.
type Service struct {
	prices    pricestore.Store
	cache     *cache.Cache
	ttl       time.Duration
	threshold float64
	history   int
	logger    *zap.Logger
}

func NewService(prices pricestore.Store, c *cache.Cache, gapsCfg config.Gaps, cacheCfg config.Cache, logger *zap.Logger) *Service {
	threshold := gapsCfg.Threshold
	if threshold <= 0 {
		threshold = gaps.DefaultThreshold
	}
	return &Service{
		prices:    prices,
		cache:     c,
		ttl:       cacheCfg.TTL,
		threshold: threshold,
		history:   gapsCfg.HistoryLimit,
		logger:    logger.Named("analytics"),
	}
}

type TickerList struct {
	Tickers []string `json:"tickers"`
	Total   int      `json:"total"`
}

// Tickers lists available tickers containing search, case-insensitively.
// Total counts every match before the limit.
func (s *Service) Tickers(ctx context.Context, search string, limit int) (TickerList, error) {
	if limit <= 0 {
		limit = DefaultTickerLimit
	}
	all, err := s.prices.Tickers(ctx)
	if err != nil {
		return TickerList{}, err
	}
	search = strings.ToUpper(strings.TrimSpace(search))
	matched := make([]string, 0, len(all))
	for _, t := range all {
		if search == "" || strings.Contains(t, search) {
			matched = append(matched, t)
		}
	}
	out := TickerList{Tickers: matched, Total: len(matched)}
	if len(matched) > limit {
		out.Tickers = matched[:limit]
	}
	return out, nil
}

type TickerInfo struct {
	Ticker     string `json:"ticker"`
	LatestDate string `json:"latest_date"`
	HasData    bool   `json:"has_data"`
}

func (s *Service) TickerInfo(ctx context.Context, ticker string) (TickerInfo, error) {
	ticker = pricestore.NormalizeTicker(ticker)
	candles, err := s.candles(ctx, ticker)
	if err != nil {
		return TickerInfo{}, err
	}
	return TickerInfo{
		Ticker:     ticker,
		LatestDate: candles[len(candles)-1].Date.Format(gaps.DateLayout),
		HasData:    true,
	}, nil
}

// Quote is a daily candle with its date formatted for the wire.
type Quote struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type Quotes struct {
	Ticker string  `json:"ticker"`
	Quotes []Quote `json:"quotes"`
	Count  int     `json:"count"`
}

// Quotes returns the most recent limit daily candles, oldest first.
func (s *Service) Quotes(ctx context.Context, ticker string, limit int) (Quotes, error) {
	if limit <= 0 {
		limit = DefaultQuoteLimit
	}
	ticker = pricestore.NormalizeTicker(ticker)
	candles, err := s.candles(ctx, ticker)
	if err != nil {
		return Quotes{}, err
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := Quotes{Ticker: ticker, Quotes: make([]Quote, len(candles)), Count: len(candles)}
	for i, c := range candles {
		out.Quotes[i] = Quote{
			Date: c.Date.Format(gaps.DateLayout), Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume,
		}
	}
	return out, nil
}

type IntradayBars struct {
	Ticker string       `json:"ticker"`
	Date   string       `json:"date"`
	Bars   []market.Bar `json:"bars"`
	Count  int          `json:"count"`
}

func (s *Service) IntradayBars(ctx context.Context, ticker, date string) (IntradayBars, error) {
	day, err := time.Parse(gaps.DateLayout, date)
	if err != nil {
		return IntradayBars{}, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", ErrInvalidInput, date)
	}
	ticker = pricestore.NormalizeTicker(ticker)
	bars, err := s.prices.IntradayBars(ctx, ticker, day)
	if err != nil {
		return IntradayBars{}, err
	}
	if len(bars) == 0 {
		return IntradayBars{}, fmt.Errorf("%s on %s: %w", ticker, date, pricestore.ErrNoData)
	}
	return IntradayBars{Ticker: ticker, Date: date, Bars: bars, Count: len(bars)}, nil
}

type GapHistory struct {
	Ticker string        `json:"ticker"`
	Gaps   []gaps.Record `json:"gaps"`
	Total  int           `json:"total"`
}

// GapHistory lists gap days in date order, truncated to limit. Total counts
// every gap found. A ticker without price data has no gaps.
func (s *Service) GapHistory(ctx context.Context, ticker string, threshold float64, limit int) (GapHistory, error) {
	if limit <= 0 {
		limit = DefaultGapLimit
	}
	ticker = pricestore.NormalizeTicker(ticker)
	threshold = s.thresholdOr(threshold)
	records, err := cache.Fetch(ctx, s.cache, gapsKey(ticker, threshold), s.ttl, func(ctx context.Context) ([]gaps.Record, error) {
		candles, err := s.prices.DailyCandles(ctx, ticker)
		if err != nil && !errors.Is(err, pricestore.ErrNoData) {
			return nil, err
		}
		return gaps.Detect(ticker, candles, threshold), nil
	})
	if err != nil {
		return GapHistory{}, err
	}
	out := GapHistory{Ticker: ticker, Gaps: records, Total: len(records)}
	if len(records) > limit {
		out.Gaps = records[:limit]
	}
	return out, nil
}

// GapStatistics summarizes the gaps of ticker. A ticker without price data
// yields the empty summary.
func (s *Service) GapStatistics(ctx context.Context, ticker string, threshold float64) (gaps.Statistics, error) {
	ticker = pricestore.NormalizeTicker(ticker)
	threshold = s.thresholdOr(threshold)
	return cache.Fetch(ctx, s.cache, statsKey(ticker, threshold), s.ttl, func(ctx context.Context) (gaps.Statistics, error) {
		return s.computeStatistics(ctx, ticker, threshold)
	})
}

func (s *Service) computeStatistics(ctx context.Context, ticker string, threshold float64) (gaps.Statistics, error) {
	candles, err := s.prices.DailyCandles(ctx, ticker)
	if err != nil && !errors.Is(err, pricestore.ErrNoData) {
		return gaps.Statistics{}, err
	}
	records := gaps.Detect(ticker, candles, threshold)
	st := gaps.ComputeStatistics(candles, records)
	st.Ticker = ticker
	if s.history > 0 {
		st.Gaps = records[:min(s.history, len(records))]
	}
	return st, nil
}

func (s *Service) candles(ctx context.Context, ticker string) ([]market.Candle, error) {
	candles, err := s.prices.DailyCandles(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, pricestore.ErrNoData)
	}
	return candles, nil
}

// thresholdOr rounds to hundredths of a percent so nearby thresholds share a
// cache entry. Non-finite or non-positive values fall back to the default.
func (s *Service) thresholdOr(threshold float64) float64 {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return s.threshold
	}
	threshold = math.Round(threshold*100) / 100
	if threshold <= 0 {
		return s.threshold
	}
	return threshold
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func gapsKey(ticker string, threshold float64) string {
	return "gaps:" + ticker + ":" + formatThreshold(threshold)
}

func statsKey(ticker string, threshold float64) string {
	return "gapstats:" + ticker + ":" + formatThreshold(threshold)
}
