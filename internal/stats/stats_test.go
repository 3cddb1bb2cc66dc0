package stats

import (
	"testing"
	"time"

	"trade-journal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clock(h, m int) *models.Clock {
	c := models.NewClock(h, m, 0)
	return &c
}

func seconds(s int64) *int64 { return &s }

// trade builds a minimal trade; entry time is optional.
func trade(date time.Time, pnl float64, entry *models.Clock) models.Trade {
	return models.Trade{
		Date:       date,
		Ticker:     "ABC",
		Side:       models.SideLong,
		EntryTime:  entry,
		EntryPrice: 10,
		ExitPrice:  10,
		Shares:     100,
		PnL:        pnl,
		NetPnL:     pnl,
	}
}

func TestComputeStreaks(t *testing.T) {
	testCases := []struct {
		name     string
		pnls     []float64
		expected Streaks
	}{
		{"Empty", nil, Streaks{}},
		{"WinWinLossWinLossLossLoss", []float64{10, 5, -3, 8, -1, -2, -4}, Streaks{Current: -3, MaxWin: 2, MaxLoss: 3}},
		{"TrailingWins", []float64{-1, 2, 3}, Streaks{Current: 2, MaxWin: 2, MaxLoss: 1}},
		{"ScratchResetsBoth", []float64{1, 1, 0}, Streaks{Current: 0, MaxWin: 2, MaxLoss: 0}},
		{"ScratchBreaksRun", []float64{-1, -1, 0, -1}, Streaks{Current: -1, MaxWin: 0, MaxLoss: 2}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			trades := make([]models.Trade, 0, len(tc.pnls))
			for i, p := range tc.pnls {
				trades = append(trades, trade(day(2024, 3, 4), p, clock(9, 30+i)))
			}
			assert.Equal(t, tc.expected, ComputeStreaks(trades))
		})
	}

	t.Run("OrderedChronologically", func(t *testing.T) {
		// Given in reverse: the loss on day 1 comes first, missing entry time sorts earliest.
		trades := []models.Trade{
			trade(day(2024, 3, 5), 5, clock(10, 0)),
			trade(day(2024, 3, 5), 5, nil),
			trade(day(2024, 3, 4), -5, clock(15, 0)),
		}
		assert.Equal(t, Streaks{Current: 2, MaxWin: 2, MaxLoss: 1}, ComputeStreaks(trades))
	})
}

func TestDashboard(t *testing.T) {
	now := time.Date(2024, time.March, 6, 14, 0, 0, 0, time.UTC) // Wednesday

	t.Run("Empty", func(t *testing.T) {
		assert.Equal(t, DashboardMetrics{}, Dashboard(nil, now))
	})

	t.Run("Populated", func(t *testing.T) {
		short := trade(day(2024, 3, 6), -50, clock(11, 0))
		short.Side = models.SideShort
		trades := []models.Trade{
			trade(day(2024, 2, 28), 100, clock(9, 30)), // previous month
			trade(day(2024, 3, 1), 200, clock(9, 30)),  // this month, previous week
			trade(day(2024, 3, 4), -100, clock(9, 30)), // Monday
			trade(day(2024, 3, 6), 0, clock(10, 0)),
			short,
		}

		m := Dashboard(trades, now)

		assert.Equal(t, 150.0, m.TotalPnL)
		assert.Equal(t, 5, m.TotalTrades)
		assert.Equal(t, 2, m.WinningTrades)
		assert.Equal(t, 2, m.LosingTrades)
		assert.Equal(t, 40.0, m.WinRate)
		assert.Equal(t, 150.0, m.AvgWin)
		assert.Equal(t, -75.0, m.AvgLoss)
		assert.Equal(t, 30.0, m.AvgPnLPerTrade)
		assert.Equal(t, 2.0, m.ProfitFactor)
		assert.Equal(t, 200.0, m.BestTrade)
		assert.Equal(t, -100.0, m.WorstTrade)
		assert.Equal(t, 200.0, m.BestDay)
		assert.Equal(t, -100.0, m.WorstDay)
		assert.Equal(t, 4, m.LongTrades)
		assert.Equal(t, 200.0, m.LongPnL)
		assert.Equal(t, 50.0, m.LongWinRate)
		assert.Equal(t, 1, m.ShortTrades)
		assert.Equal(t, -50.0, m.ShortPnL)
		assert.Equal(t, 0.0, m.ShortWinRate)
		assert.Equal(t, -50.0, m.TodayPnL)
		assert.Equal(t, -150.0, m.WeekPnL)
		assert.Equal(t, 50.0, m.MonthPnL)
		assert.Equal(t, -1, m.Current)
	})

	t.Run("ProfitFactorWithoutLosses", func(t *testing.T) {
		trades := []models.Trade{trade(day(2024, 3, 4), 30, nil), trade(day(2024, 3, 4), 20, nil)}
		assert.Equal(t, 50.0, Dashboard(trades, now).ProfitFactor)
	})
}

func TestProfitFactor(t *testing.T) {
	testCases := []struct {
		name     string
		pnls     []float64
		expected float64
	}{
		{"NoTrades", nil, 0},
		{"OnlyScratches", []float64{0, 0}, 0},
		{"Mixed", []float64{300, -100, -50}, 2},
		{"OnlyLosses", []float64{-10}, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var trades []models.Trade
			for _, p := range tc.pnls {
				trades = append(trades, trade(day(2024, 1, 2), p, nil))
			}
			pf := ProfitFactor(trades)
			assert.GreaterOrEqual(t, pf, 0.0)
			assert.InDelta(t, tc.expected, pf, 1e-9)
		})
	}
}

func TestDetailed(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		s := Detailed(nil)
		assert.Equal(t, DetailedStats{}, s)
	})

	t.Run("SingleTrade", func(t *testing.T) {
		s := Detailed([]models.Trade{trade(day(2024, 3, 4), 42, nil)})

		assert.Equal(t, 0.0, s.KellyPercentage)
		assert.Equal(t, 0.0, s.SystemQualityNumber)
		assert.Equal(t, 0.0, s.TradePnLStandardDeviation)
		assert.Equal(t, 42.0, s.ProfitFactor)
		assert.Equal(t, 1, s.TotalNumberOfTrades)
	})

	t.Run("Populated", func(t *testing.T) {
		win := trade(day(2024, 3, 4), 100, clock(9, 30))
		win.DurationSeconds = seconds(60)
		win.Commissions = 1.5
		win2 := trade(day(2024, 3, 4), 200, clock(10, 0))
		win2.DurationSeconds = seconds(120)
		loss := trade(day(2024, 3, 5), -100, clock(9, 45))
		loss.Commissions = 2
		scratch := trade(day(2024, 3, 5), 0, clock(11, 0))
		scratch.DurationSeconds = seconds(30)

		s := Detailed([]models.Trade{win, win2, loss, scratch})

		assert.Equal(t, 200.0, s.TotalGainLoss)
		assert.Equal(t, 200.0, s.LargestGain)
		assert.Equal(t, -100.0, s.LargestLoss)
		assert.Equal(t, 100.0, s.AverageDailyGainLoss)
		assert.Equal(t, 2.0, s.AverageDailyVolume)
		assert.Equal(t, 0.5, s.AveragePerShareGainLoss)
		assert.Equal(t, 50.0, s.AverageTradeGainLoss)
		assert.Equal(t, 150.0, s.AverageWinningTrade)
		assert.Equal(t, -100.0, s.AverageLosingTrade)
		assert.Equal(t, 2, s.NumberOfWinningTrades)
		assert.Equal(t, 1, s.NumberOfLosingTrades)
		assert.Equal(t, 1, s.NumberOfScratchTrades)
		assert.Equal(t, s.TotalNumberOfTrades,
			s.NumberOfWinningTrades+s.NumberOfLosingTrades+s.NumberOfScratchTrades)
		assert.Equal(t, 90.0, s.AverageHoldTimeWinningSeconds)
		assert.Equal(t, 0.0, s.AverageHoldTimeLosingSeconds)
		assert.Equal(t, 30.0, s.AverageHoldTimeScratchSeconds)
		assert.Equal(t, 2, s.MaxConsecutiveWins)
		assert.Equal(t, 1, s.MaxConsecutiveLosses)
		// sample stddev of [100, 200, -100, 0] = sqrt(50000/3)
		assert.Equal(t, 129.1, s.TradePnLStandardDeviation)
		// 50 / 129.0994 * 2
		assert.Equal(t, 0.77, s.SystemQualityNumber)
		// p = 0.5, b = 1.5 -> 0.5 - 0.5/1.5
		assert.Equal(t, 16.67, s.KellyPercentage)
		assert.Equal(t, 3.0, s.ProfitFactor)
		assert.Equal(t, 3.5, s.TotalCommissions)
		assert.Equal(t, s.TotalCommissions, s.TotalFees)
		assert.Nil(t, s.KRatio)
		assert.Nil(t, s.AveragePositionMAE)
	})

	t.Run("KellyWithoutLosersIsZero", func(t *testing.T) {
		s := Detailed([]models.Trade{trade(day(2024, 3, 4), 5, nil), trade(day(2024, 3, 5), 7, nil)})
		assert.Equal(t, 0.0, s.KellyPercentage)
	})
}

func TestDaysTimes(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		out := DaysTimes(nil)
		require.Len(t, out.ByDay, 7)
		assert.Equal(t, "Monday", out.ByDay[0].DayName)
		assert.Equal(t, "Sunday", out.ByDay[6].DayName)
		assert.Empty(t, out.ByHour)
	})

	t.Run("Buckets", func(t *testing.T) {
		trades := []models.Trade{
			trade(day(2024, 3, 4), 10, clock(9, 30)), // Monday
			trade(day(2024, 3, 4), -5, clock(9, 45)), // Monday
			trade(day(2024, 3, 10), 3, clock(13, 5)), // Sunday
			trade(day(2024, 3, 6), 1, nil),           // Wednesday, no entry time
		}

		out := DaysTimes(trades)

		require.Len(t, out.ByDay, 7)
		assert.Equal(t, 2, out.ByDay[0].Trades)
		assert.Equal(t, 5.0, out.ByDay[0].TotalPnL)
		assert.Equal(t, 50.0, out.ByDay[0].WinRate)
		assert.Equal(t, 1, out.ByDay[2].Trades)
		assert.Equal(t, 1, out.ByDay[6].Trades)

		require.Len(t, out.ByHour, 2)
		assert.Equal(t, 9, out.ByHour[0].Hour)
		assert.Equal(t, "9 AM", out.ByHour[0].HourLabel)
		assert.Equal(t, 2, out.ByHour[0].Trades)
		assert.Equal(t, "1 PM", out.ByHour[1].HourLabel)

		dayTotal := 0
		for _, d := range out.ByDay {
			dayTotal += d.Trades
		}
		assert.Equal(t, len(trades), dayTotal)
	})
}

func TestHourLabel(t *testing.T) {
	assert.Equal(t, "12 AM", HourLabel(0))
	assert.Equal(t, "11 AM", HourLabel(11))
	assert.Equal(t, "12 PM", HourLabel(12))
	assert.Equal(t, "11 PM", HourLabel(23))
}

func TestPriceVolume(t *testing.T) {
	at := func(price, shares, pnl float64) models.Trade {
		tr := trade(day(2024, 3, 4), pnl, nil)
		tr.EntryPrice = price
		tr.Shares = shares
		return tr
	}

	t.Run("FirstMatchingBucket", func(t *testing.T) {
		trades := []models.Trade{
			at(9.99, 99, 5),
			at(10, 100, -5),
			at(300, 5000, 1),
		}

		out := PriceVolume(trades)

		require.Len(t, out.ByPrice, 3)
		assert.Equal(t, "$0-10", out.ByPrice[0].RangeLabel)
		assert.Equal(t, "$10-25", out.ByPrice[1].RangeLabel)
		assert.Equal(t, "$250+", out.ByPrice[2].RangeLabel)
		assert.Equal(t, float64(openBound), out.ByPrice[2].MaxPrice)

		require.Len(t, out.ByVolume, 3)
		assert.Equal(t, "1-100", out.ByVolume[0].RangeLabel)
		assert.Equal(t, "100-500", out.ByVolume[1].RangeLabel)
		assert.Equal(t, "5K+", out.ByVolume[2].RangeLabel)
		assert.Equal(t, openBound, out.ByVolume[2].MaxShares)
	})

	t.Run("VolumeBucketsTotalAndDisjoint", func(t *testing.T) {
		var trades []models.Trade
		for _, shares := range []float64{1, 50, 99.9, 100, 499, 500, 999, 1000, 4999, 5000, 100000} {
			trades = append(trades, at(20, shares, 1))
		}

		out := PriceVolume(trades)

		total := 0
		for _, v := range out.ByVolume {
			total += v.Trades
		}
		assert.Equal(t, len(trades), total)
	})

	t.Run("Empty", func(t *testing.T) {
		out := PriceVolume(nil)
		assert.NotNil(t, out.ByPrice)
		assert.Empty(t, out.ByVolume)
	})
}

func TestCalendar(t *testing.T) {
	trades := []models.Trade{
		trade(day(2024, 2, 29), 999, nil),
		trade(day(2024, 3, 4), 100, nil),
		trade(day(2024, 3, 4), -40, nil),
		trade(day(2024, 3, 5), -30, nil),
	}

	m := Calendar(trades, 2024, time.March)

	assert.Equal(t, 3, m.Month)
	assert.Equal(t, 2024, m.Year)
	assert.Equal(t, 30.0, m.TotalPnL)
	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 2, m.TradingDays)
	assert.Equal(t, 15.0, m.AvgDailyPnL)
	assert.Equal(t, 60.0, m.BestDay)
	assert.Equal(t, -30.0, m.WorstDay)
	require.Len(t, m.Calendar, 2)
	assert.Equal(t, "2024-03-04", m.Calendar[0].Date)
	assert.True(t, m.Calendar[0].IsGreen)
	assert.False(t, m.Calendar[1].IsGreen)

	empty := Calendar(nil, 2024, time.April)
	assert.Equal(t, 0, empty.TradingDays)
	assert.NotNil(t, empty.Calendar)
}

func TestTickers(t *testing.T) {
	mk := func(ticker string, pnl float64) models.Trade {
		tr := trade(day(2024, 3, 4), pnl, nil)
		tr.Ticker = ticker
		return tr
	}
	trades := []models.Trade{mk("AAA", 10), mk("BBB", -500), mk("CCC", 100), mk("AAA", 15)}

	out := Tickers(trades, 2)

	require.Len(t, out, 2)
	assert.Equal(t, "BBB", out[0].Ticker)
	assert.Equal(t, "CCC", out[1].Ticker)

	all := Tickers(trades, 0)
	require.Len(t, all, 3)
	assert.Equal(t, 25.0, all[2].TotalPnL)
	assert.Equal(t, 12.5, all[2].AvgPnL)
	assert.Equal(t, 100.0, all[2].WinRate)
}

func TestTiming(t *testing.T) {
	a := trade(day(2024, 3, 4), 10, clock(9, 30))
	a.DurationSeconds = seconds(600)
	b := trade(day(2024, 3, 4), -10, clock(9, 50))
	b.DurationSeconds = seconds(1200)
	c := trade(day(2024, 3, 4), 5, nil)

	out := Timing([]models.Trade{a, b, c})

	require.Len(t, out, 1)
	assert.Equal(t, 9, out[0].Hour)
	assert.Equal(t, 2, out[0].Trades)
	assert.Equal(t, 15.0, out[0].AvgDurationMinutes)
	assert.Equal(t, 50.0, out[0].WinRate)
}
