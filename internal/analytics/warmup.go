package analytics

import (
	"context"
	"fmt"

	"trade-journal/internal/pricestore"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Warmup recomputes and re-caches gap statistics at the default threshold
// for each ticker. Failures are logged and counted; the rest still run.
func (s *Service) Warmup(ctx context.Context, tickers []string) (failed int) {
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			return failed + 1
		}
		if err := s.refresh(ctx, ticker); err != nil {
			s.logger.Warn("Warmup failed", zap.String("ticker", ticker), zap.Error(err))
			failed++
		}
	}
	s.logger.Info("Warmup finished", zap.Int("tickers", len(tickers)), zap.Int("failed", failed))
	return failed
}

// invalidator is implemented by price stores that cache candles.
type invalidator interface {
	Invalidate(ticker string) error
}

func (s *Service) refresh(ctx context.Context, ticker string) error {
	ticker = pricestore.NormalizeTicker(ticker)
	if inv, ok := s.prices.(invalidator); ok {
		if err := inv.Invalidate(ticker); err != nil {
			return fmt.Errorf("failed to invalidate candles of %s: %w", ticker, err)
		}
	}
	key := statsKey(ticker, s.threshold)
	if err := s.cache.Invalidate(key); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	if err := s.cache.Invalidate(gapsKey(ticker, s.threshold)); err != nil {
		return fmt.Errorf("failed to invalidate gaps of %s: %w", ticker, err)
	}
	_, err := s.GapStatistics(ctx, ticker, s.threshold)
	return err
}

// Scheduler runs Warmup on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	tickers []string
	ctx     context.Context
}

// NewScheduler registers the warmup job. schedule uses the six-field
// format with seconds.
func NewScheduler(ctx context.Context, service *Service, schedule string, tickers []string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		service: service,
		tickers: tickers,
		ctx:     ctx,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("register warmup task: %w", err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	s.service.Warmup(s.ctx, s.tickers)
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.service.logger.Info("Warmup scheduler started", zap.Strings("tickers", s.tickers))
}

// Stop stops the scheduler and waits for a running warmup.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
