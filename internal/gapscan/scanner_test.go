package gapscan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trade-journal/internal/market"
	"trade-journal/internal/models"
	"trade-journal/internal/pricestore"
	"trade-journal/internal/tradestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakePrices struct {
	candles map[string][]market.Candle
	fail    map[string]error
}

func (f *fakePrices) Tickers(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(f.candles)+len(f.fail))
	for t := range f.candles {
		out = append(out, t)
	}
	for t := range f.fail {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakePrices) DailyCandles(ctx context.Context, ticker string) ([]market.Candle, error) {
	if err, ok := f.fail[ticker]; ok {
		return nil, err
	}
	c, ok := f.candles[ticker]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ticker, pricestore.ErrNoData)
	}
	return c, nil
}

func (f *fakePrices) IntradayBars(ctx context.Context, ticker string, date time.Time) ([]market.Bar, error) {
	return nil, pricestore.ErrNoData
}

type recordingWriter struct {
	mu   sync.Mutex
	rows []models.Gap
	err  error
}

func (w *recordingWriter) UpsertGaps(ctx context.Context, gaps []models.Gap) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.rows = append(w.rows, gaps...)
	return nil
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func series(opens ...float64) []market.Candle {
	out := make([]market.Candle, len(opens))
	for i, o := range opens {
		out[i] = market.Candle{Date: day(i + 1), Open: o, High: o + 1, Low: o - 1, Close: o, Volume: 100}
	}
	return out
}

func TestScanner_Run(t *testing.T) {
	ctx := context.Background()
	prices := &fakePrices{
		candles: map[string][]market.Candle{
			"AAA": series(10, 12, 12.1, 10),
			"BBB": series(10, 10.2, 10.4),
			"CCC": series(5, 6),
		},
		fail: map[string]error{"BAD": errors.New("partition unreadable")},
	}

	t.Run("CountsGapsAndFailures", func(t *testing.T) {
		// Arrange
		w := &recordingWriter{}
		s := NewScanner(prices, w, 10, 2, zap.NewNop())

		// Act
		res, err := s.Run(ctx, []string{"aaa", "BBB", "CCC", "BAD", "MISSING"})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 5, res.Tickers)
		assert.Equal(t, 3, res.Gaps)
		assert.Equal(t, 1, res.Failed)
		assert.Len(t, w.rows, 3)
	})

	t.Run("AllTickersWhenNoneGiven", func(t *testing.T) {
		w := &recordingWriter{}
		s := NewScanner(prices, w, 10, 0, zap.NewNop())

		res, err := s.Run(ctx, nil)

		require.NoError(t, err)
		assert.Equal(t, 4, res.Tickers)
		assert.Equal(t, 3, res.Gaps)
	})

	t.Run("WriterFailureIsCounted", func(t *testing.T) {
		w := &recordingWriter{err: errors.New("db locked")}
		s := NewScanner(prices, w, 10, 1, zap.NewNop())

		res, err := s.Run(ctx, []string{"AAA", "BBB"})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, 0, res.Gaps)
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		s := NewScanner(prices, &recordingWriter{}, 10, 1, zap.NewNop())

		_, err := s.Run(cctx, []string{"AAA"})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestScanner_PersistsIdempotently(t *testing.T) {
	// Arrange
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Gap{}))
	store := tradestore.New(db)

	prices := &fakePrices{candles: map[string][]market.Candle{"AAA": series(10, 12, 12.1, 10)}}
	s := NewScanner(prices, store, 10, 2, zap.NewNop())

	// Act
	_, err = s.Run(context.Background(), []string{"AAA"})
	require.NoError(t, err)
	_, err = s.Run(context.Background(), []string{"AAA"})
	require.NoError(t, err)

	// Assert
	rows, err := store.ListGaps(context.Background(), "AAA", 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, day(4), rows[0].Date.UTC())
	assert.Equal(t, "down", rows[0].Direction)
	assert.Equal(t, 20.0, rows[1].GapPct)
}
