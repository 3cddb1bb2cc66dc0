// Package gapscan detects gaps across many tickers and persists them.
package gapscan

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"trade-journal/internal/gaps"
	"trade-journal/internal/models"
	"trade-journal/internal/pricestore"
	"trade-journal/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

// GapWriter persists detected gaps.
type GapWriter interface {
	UpsertGaps(ctx context.Context, gaps []models.Gap) error
}

// Result counts the outcome of a scan.
type Result struct {
	Tickers  int           `json:"tickers"`
	Gaps     int           `json:"gaps"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Scanner runs gap detection over a bounded worker pool.
type Scanner struct {
	prices    pricestore.Store
	writer    GapWriter
	threshold float64
	workers   int
	logger    *zap.Logger
}

func NewScanner(prices pricestore.Store, writer GapWriter, threshold float64, workers int, logger *zap.Logger) *Scanner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Scanner{
		prices:    prices,
		writer:    writer,
		threshold: threshold,
		workers:   workers,
		logger:    logger.Named("gapscan"),
	}
}

// Run scans tickers, or every ticker the price store knows when none are
// given. A failing ticker is logged and counted; the batch continues.
// Only a cancelled context or an unreadable ticker list abort the run.
func (s *Scanner) Run(ctx context.Context, tickers []string) (Result, error) {
	start := time.Now()
	if len(tickers) == 0 {
		all, err := s.prices.Tickers(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("failed to list tickers: %w", err)
		}
		tickers = all
	}

	var found, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, ticker := range tickers {
		ticker := pricestore.NormalizeTicker(ticker)
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			n, err := s.scan(gctx, ticker)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.Warn("Ticker scan failed", zap.String("ticker", ticker), zap.Error(err))
				failed.Add(1)
				return nil
			}
			found.Add(int64(n))
			s.logger.Debug("Ticker scanned", zap.String("ticker", ticker), zap.Int("gaps", n))
			return nil
		})
	}
	err := g.Wait()

	res := Result{
		Tickers:  len(tickers),
		Gaps:     int(found.Load()),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}
	if err != nil {
		return res, fmt.Errorf("gap scan interrupted: %w", err)
	}
	s.logger.Info("Gap scan finished",
		zap.Int("tickers", res.Tickers), zap.Int("gaps", res.Gaps),
		zap.Int("failed", res.Failed), zap.Duration("duration", res.Duration))
	return res, nil
}

func (s *Scanner) scan(ctx context.Context, ticker string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "gapscan.Ticker", attribute.String("ticker", ticker))
	defer span.End()

	candles, err := s.prices.DailyCandles(ctx, ticker)
	if errors.Is(err, pricestore.ErrNoData) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	records := gaps.Detect(ticker, candles, s.threshold)
	if len(records) == 0 {
		return 0, nil
	}
	rows, err := ToModels(records)
	if err != nil {
		return 0, err
	}
	if err := s.writer.UpsertGaps(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ToModels converts detected records to persistable rows.
func ToModels(records []gaps.Record) ([]models.Gap, error) {
	out := make([]models.Gap, 0, len(records))
	for _, r := range records {
		date, err := time.Parse(gaps.DateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("bad gap date %q: %w", r.Date, err)
		}
		out = append(out, models.Gap{
			Ticker:    r.Ticker,
			Date:      date,
			GapPct:    r.GapValue,
			Direction: r.Direction,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			PrevClose: r.PrevClose,
			Volume:    r.Volume,
			RangePct:  r.Range,
		})
	}
	return out, nil
}
