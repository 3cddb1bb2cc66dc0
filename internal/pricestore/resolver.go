package pricestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"trade-journal/internal/market"

	"go.uber.org/zap"
)

// Source is a named candidate store.
type Source struct {
	Name  string
	Store Store
}

// Resolver tries its sources in order. The first source returning data wins;
// failures are logged and the next source is tried.
type Resolver struct {
	sources []Source
	logger  *zap.Logger
}

// NewResolver tries sources in the given order.
func NewResolver(logger *zap.Logger, sources ...Source) *Resolver {
	return &Resolver{sources: sources, logger: logger.Named("price-resolver")}
}

var _ Store = (*Resolver)(nil)

// Tickers is the sorted union over all sources.
func (r *Resolver) Tickers(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var errs []error
	for _, src := range r.sources {
		tickers, err := src.Store.Tickers(ctx)
		if err != nil {
			r.logger.Warn("Ticker listing failed", zap.String("source", src.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		for _, t := range tickers {
			seen[t] = struct{}{}
		}
	}
	if len(seen) == 0 && len(errs) > 0 && len(errs) == len(r.sources) {
		return nil, errors.Join(errs...)
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (r *Resolver) DailyCandles(ctx context.Context, ticker string) ([]market.Candle, error) {
	return first(ctx, r, ticker, func(s Store) ([]market.Candle, error) {
		return s.DailyCandles(ctx, ticker)
	})
}

func (r *Resolver) IntradayBars(ctx context.Context, ticker string, date time.Time) ([]market.Bar, error) {
	return first(ctx, r, ticker, func(s Store) ([]market.Bar, error) {
		return s.IntradayBars(ctx, ticker, date)
	})
}

// first returns ErrNoData only when every source came back empty; any source
// failure is returned instead.
func first[T any](ctx context.Context, r *Resolver, ticker string, fetch func(Store) ([]T, error)) ([]T, error) {
	var errs []error
	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := fetch(src.Store)
		if err != nil {
			if !errors.Is(err, ErrNoData) {
				r.logger.Warn("Price source failed", zap.String("source", src.Name), zap.String("ticker", ticker), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			}
			continue
		}
		if len(out) > 0 {
			r.logger.Debug("Resolved prices", zap.String("source", src.Name), zap.String("ticker", ticker), zap.Int("rows", len(out)))
			return out, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load prices for %s: %w", NormalizeTicker(ticker), errors.Join(errs...))
	}
	return nil, fmt.Errorf("%s: %w", NormalizeTicker(ticker), ErrNoData)
}
