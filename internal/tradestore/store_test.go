package tradestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"trade-journal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStore(t *testing.T) *Store {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Trade{}, &models.Tag{}, &models.RiskSettings{}, &models.Gap{}))
	return New(db)
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func newTrade(user uint, ticker string, d int, pnl float64) models.Trade {
	t := models.Trade{
		UserID: user, Date: day(d), Ticker: ticker, Side: models.SideLong,
		EntryPrice: 10, ExitPrice: 11, Shares: 100, PnL: pnl,
	}
	t.RecomputeNetPnL()
	return t
}

func TestStore_ListAndFilter(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := setupStore(t)
	require.NoError(t, s.CreateBatch(ctx, []models.Trade{
		newTrade(1, "AAPL", 1, 10),
		newTrade(1, "MSFT", 2, 20),
		newTrade(1, "AAPL", 3, 30),
		newTrade(2, "AAPL", 3, 40),
	}))

	t.Run("NewestFirstScopedToUser", func(t *testing.T) {
		trades, err := s.List(ctx, Filter{UserID: 1})
		require.NoError(t, err)
		require.Len(t, trades, 3)
		assert.Equal(t, 30.0, trades[0].PnL)
		assert.Equal(t, 10.0, trades[2].PnL)
	})

	t.Run("TickerIsCaseInsensitive", func(t *testing.T) {
		trades, err := s.List(ctx, Filter{UserID: 1, Ticker: "aapl"})
		require.NoError(t, err)
		assert.Len(t, trades, 2)
	})

	t.Run("DateRange", func(t *testing.T) {
		start, end := day(2), day(3)
		trades, err := s.All(ctx, Filter{UserID: 1, Start: &start, End: &end, Order: OrderChronological})
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, "MSFT", trades[0].Ticker)
	})

	t.Run("Paging", func(t *testing.T) {
		trades, err := s.List(ctx, Filter{UserID: 1, Skip: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, 20.0, trades[0].PnL)
	})
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	tr := newTrade(1, "NVDA", 5, 50)
	require.NoError(t, s.Create(ctx, &tr))
	require.NotZero(t, tr.ID)

	t.Run("GetOtherUserIsNotFound", func(t *testing.T) {
		_, err := s.Get(ctx, 2, tr.ID)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("UpdateWritesZeroValues", func(t *testing.T) {
		got, err := s.Get(ctx, 1, tr.ID)
		require.NoError(t, err)
		got.PnL = 0
		got.Notes = "flat"
		got.RecomputeNetPnL()
		require.NoError(t, s.Update(ctx, got))

		again, err := s.Get(ctx, 1, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, 0.0, again.PnL)
		assert.Equal(t, "flat", again.Notes)
	})

	t.Run("UpdateOtherUserIsNotFound", func(t *testing.T) {
		other := tr
		other.UserID = 2
		assert.True(t, errors.Is(s.Update(ctx, &other), ErrNotFound))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, 1, tr.ID))
		assert.True(t, errors.Is(s.Delete(ctx, 1, tr.ID), ErrNotFound))
	})

	t.Run("DeleteAll", func(t *testing.T) {
		require.NoError(t, s.CreateBatch(ctx, []models.Trade{newTrade(1, "A", 1, 1), newTrade(1, "B", 1, 1)}))
		n, err := s.DeleteAll(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}

func TestStore_Tags(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	tr := newTrade(1, "AMD", 1, 5)
	require.NoError(t, s.Create(ctx, &tr))

	momentum := models.Tag{UserID: 1, Name: "momentum"}
	require.NoError(t, s.CreateTag(ctx, &momentum))
	assert.Equal(t, models.DefaultTagColor, momentum.Color)
	assert.True(t, errors.Is(s.CreateTag(ctx, &models.Tag{UserID: 1, Name: "momentum"}), ErrDuplicateTag))

	foreign := models.Tag{UserID: 2, Name: "momentum"}
	require.NoError(t, s.CreateTag(ctx, &foreign))

	require.NoError(t, s.SetTradeTags(ctx, 1, tr.ID, []uint{momentum.ID, foreign.ID}))
	got, err := s.Get(ctx, 1, tr.ID)
	require.NoError(t, err)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, "momentum", got.Tags[0].Name)

	require.NoError(t, s.DeleteTag(ctx, 1, momentum.ID))
	got, err = s.Get(ctx, 1, tr.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
	require.NoError(t, s.CreateTag(ctx, &models.Tag{UserID: 1, Name: "momentum"}))

	assert.True(t, errors.Is(s.DeleteTag(ctx, 1, foreign.ID), ErrNotFound))
}

func TestStore_RiskSettings(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	rs, err := s.RiskSettings(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, rs.AccountSize)

	rs.AccountSize = 25000
	require.NoError(t, s.SaveRiskSettings(ctx, rs))

	again, err := s.RiskSettings(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, rs.ID, again.ID)
	assert.Equal(t, 25000.0, again.AccountSize)
}

func TestStore_UpsertGaps(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	require.NoError(t, s.UpsertGaps(ctx, []models.Gap{
		{Ticker: "XYZ", Date: day(1), GapPct: 12, Direction: "up"},
		{Ticker: "XYZ", Date: day(2), GapPct: -15, Direction: "down"},
		{Ticker: "XYZ", Date: day(3), GapPct: 5, Direction: "up"},
	}))
	require.NoError(t, s.UpsertGaps(ctx, []models.Gap{{Ticker: "XYZ", Date: day(1), GapPct: 13, Direction: "up"}}))

	gaps, err := s.ListGaps(ctx, "xyz", 10, 0)
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	assert.Equal(t, -15.0, gaps[0].GapPct)
	assert.Equal(t, 13.0, gaps[1].GapPct)
}
