package journal

import (
	"context"
	"time"

	"trade-journal/internal/models"
	"trade-journal/internal/stats"
	"trade-journal/internal/tradestore"
)

const defaultTickerLimit = 10

// history loads every trade matching f in chronological order.
func (s *Service) history(ctx context.Context, f tradestore.Filter) ([]models.Trade, error) {
	f.Order = tradestore.OrderChronological
	return s.store.All(ctx, f)
}

func (s *Service) Dashboard(ctx context.Context, f tradestore.Filter) (stats.DashboardMetrics, error) {
	trades, err := s.history(ctx, f)
	if err != nil {
		return stats.DashboardMetrics{}, err
	}
	return stats.Dashboard(trades, s.now()), nil
}

func (s *Service) Detailed(ctx context.Context, f tradestore.Filter) (stats.DetailedStats, error) {
	trades, err := s.history(ctx, f)
	if err != nil {
		return stats.DetailedStats{}, err
	}
	return stats.Detailed(trades), nil
}

func (s *Service) DaysTimes(ctx context.Context, f tradestore.Filter) (stats.DaysTimesStats, error) {
	trades, err := s.history(ctx, f)
	if err != nil {
		return stats.DaysTimesStats{}, err
	}
	return stats.DaysTimes(trades), nil
}

func (s *Service) PriceVolume(ctx context.Context, f tradestore.Filter) (stats.PriceVolumeStats, error) {
	trades, err := s.history(ctx, f)
	if err != nil {
		return stats.PriceVolumeStats{}, err
	}
	return stats.PriceVolume(trades), nil
}

// Calendar reports one month. The filter's date range is replaced by the
// month bounds.
func (s *Service) Calendar(ctx context.Context, f tradestore.Filter, year int, month time.Month) (stats.MonthlyStats, error) {
	if year < 1 || month < time.January || month > time.December {
		return stats.MonthlyStats{}, invalid("invalid month %d-%d", year, month)
	}
	start, end := stats.MonthBounds(year, month)
	f.Start, f.End = &start, &end
	trades, err := s.history(ctx, f)
	if err != nil {
		return stats.MonthlyStats{}, err
	}
	return stats.Calendar(trades, year, month), nil
}

func (s *Service) Tickers(ctx context.Context, f tradestore.Filter, limit int) ([]stats.TickerStats, error) {
	if limit <= 0 {
		limit = defaultTickerLimit
	}
	trades, err := s.history(ctx, f)
	if err != nil {
		return nil, err
	}
	return stats.Tickers(trades, limit), nil
}

func (s *Service) Timing(ctx context.Context, f tradestore.Filter) ([]stats.TimingStats, error) {
	trades, err := s.history(ctx, f)
	if err != nil {
		return nil, err
	}
	return stats.Timing(trades), nil
}
