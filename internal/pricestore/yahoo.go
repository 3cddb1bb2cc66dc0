package pricestore

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"trade-journal/internal/config"
	"trade-journal/internal/market"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const chartPath = "/v8/finance/chart/{ticker}"

// YahooStore fetches candles from the Yahoo Finance chart API.
type YahooStore struct {
	client    *resty.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
	loc       *time.Location
	history   string
	backoff   time.Duration
	retries   int
	userAgent string
}

// NewYahooStore creates a chart API client.
func NewYahooStore(cfg *config.Yahoo, loc *time.Location, logger *zap.Logger) *YahooStore {
	if loc == nil {
		loc = time.UTC
	}
	return &YahooStore{
		client:    resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(30 * time.Second),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		logger:    logger.Named("yahoo-store"),
		loc:       loc,
		history:   cfg.Range,
		backoff:   time.Second,
		retries:   3,
		userAgent: "Mozilla/5.0",
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// Tickers is always empty: the chart API cannot enumerate symbols.
func (s *YahooStore) Tickers(context.Context) ([]string, error) {
	return nil, nil
}

func (s *YahooStore) DailyCandles(ctx context.Context, ticker string) ([]market.Candle, error) {
	ticker = NormalizeTicker(ticker)
	bars, err := s.chart(ctx, ticker, map[string]string{"range": s.history, "interval": "1d"})
	if err != nil {
		return nil, fmt.Errorf("failed to get daily candles for %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	return market.AggregateToDaily(bars), nil
}

// IntradayBars asks for one-minute bars. Yahoo only keeps recent minute
// history, so older dates come back empty.
func (s *YahooStore) IntradayBars(ctx context.Context, ticker string, date time.Time) ([]market.Bar, error) {
	ticker = NormalizeTicker(ticker)
	day := market.DayOf(date)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	bars, err := s.chart(ctx, ticker, map[string]string{
		"period1":        strconv.FormatInt(start.Unix(), 10),
		"period2":        strconv.FormatInt(start.AddDate(0, 0, 1).Unix(), 10),
		"interval":       "1m",
		"includePrePost": "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get intraday bars for %s: %w", ticker, err)
	}
	return onDate(bars, date, s.loc), nil
}

func (s *YahooStore) chart(ctx context.Context, ticker string, params map[string]string) ([]market.Bar, error) {
	if err := ValidateTicker(ticker); err != nil {
		return nil, err
	}
	var body chartResponse
	req := s.client.R().
		SetContext(ctx).
		SetPathParam("ticker", ticker).
		SetQueryParams(params).
		SetHeader("User-Agent", s.userAgent).
		SetResult(&body)

	if _, err := s.doRequest(ctx, http.MethodGet, chartPath, req); err != nil {
		return nil, err
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s: %s", body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, nil
	}
	return s.toBars(body.Chart.Result[0]), nil
}

func (s *YahooStore) toBars(r chartResult) []market.Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	at := func(vals []*float64, i int) float64 {
		if i >= len(vals) || vals[i] == nil {
			return math.NaN()
		}
		return *vals[i]
	}
	bars := make([]market.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		b := market.Bar{
			Time:   time.Unix(ts, 0).In(s.loc),
			Open:   at(q.Open, i),
			High:   at(q.High, i),
			Low:    at(q.Low, i),
			Close:  at(q.Close, i),
			Volume: zeroIfNaN(at(q.Volume, i)),
		}
		if b.Valid() {
			bars = append(bars, b)
		}
	}
	return bars
}

// doRequest executes req under the rate limiter, retrying throttled,
// server-side and network failures with exponential backoff.
func (s *YahooStore) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < s.retries; i++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		s.logger.Debug("Executing request", zap.String("method", method), zap.String("url", s.client.BaseURL+url))
		resp, err = req.Execute(method, url)
		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration
		if resp != nil && err == nil {
			status := resp.StatusCode()
			switch {
			case status == http.StatusTooManyRequests:
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case status >= 500:
				shouldRetry = true
			}
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}
		if i == s.retries-1 {
			break
		}
		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * s.backoff
		}

		s.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil && resp != nil {
		err = fmt.Errorf("status %s", resp.Status())
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", s.retries, err)
}
