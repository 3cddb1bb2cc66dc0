package stats

import (
	"math"
	"time"

	"trade-journal/internal/models"
)

// DashboardMetrics is the headline summary of a trade collection.
type DashboardMetrics struct {
	TotalPnL       float64 `json:"total_pnl"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	AvgPnLPerTrade float64 `json:"avg_pnl_per_trade"`
	ProfitFactor   float64 `json:"profit_factor"`

	BestTrade  float64 `json:"best_trade"`
	WorstTrade float64 `json:"worst_trade"`
	BestDay    float64 `json:"best_day"`
	WorstDay   float64 `json:"worst_day"`

	LongPnL      float64 `json:"long_pnl"`
	LongTrades   int     `json:"long_trades"`
	LongWinRate  float64 `json:"long_win_rate"`
	ShortPnL     float64 `json:"short_pnl"`
	ShortTrades  int     `json:"short_trades"`
	ShortWinRate float64 `json:"short_win_rate"`

	TodayPnL float64 `json:"today_pnl"`
	WeekPnL  float64 `json:"week_pnl"`
	MonthPnL float64 `json:"month_pnl"`

	Streaks
}

// ProfitFactor is gross profit over gross loss, or gross profit alone when
// nothing was lost.
func ProfitFactor(trades []models.Trade) float64 {
	grossProfit, grossLoss := 0.0, 0.0
	for _, t := range trades {
		switch OutcomeOf(t) {
		case Win:
			grossProfit += t.PnL
		case Loss:
			grossLoss += -t.PnL
		}
	}
	if grossLoss > 0 {
		return grossProfit / grossLoss
	}
	return grossProfit
}

// Dashboard computes the dashboard bundle. Period P&L is measured against
// now's calendar date; weeks start on Monday.
func Dashboard(trades []models.Trade, now time.Time) DashboardMetrics {
	var m DashboardMetrics
	if len(trades) == 0 {
		return m
	}

	var total, winSum, lossSum float64
	var long, short tally
	best, worst := math.Inf(-1), math.Inf(1)
	for _, t := range trades {
		total += t.PnL
		switch OutcomeOf(t) {
		case Win:
			m.WinningTrades++
			winSum += t.PnL
		case Loss:
			m.LosingTrades++
			lossSum += t.PnL
		}
		best = math.Max(best, t.PnL)
		worst = math.Min(worst, t.PnL)
		if t.Side == models.SideShort {
			short.add(t)
		} else {
			long.add(t)
		}
	}

	m.TotalTrades = len(trades)
	m.TotalPnL = round2(total)
	m.WinRate = round2(safeDiv(float64(m.WinningTrades), float64(m.TotalTrades)) * 100)
	m.AvgWin = round2(safeDiv(winSum, float64(m.WinningTrades)))
	m.AvgLoss = round2(safeDiv(lossSum, float64(m.LosingTrades)))
	m.AvgPnLPerTrade = round2(safeDiv(total, float64(m.TotalTrades)))
	m.ProfitFactor = round2(ProfitFactor(trades))
	m.BestTrade = round2(best)
	m.WorstTrade = round2(worst)

	worstDay, bestDay := minMax(dailyPnL(trades))
	m.BestDay = round2(bestDay)
	m.WorstDay = round2(worstDay)

	m.LongPnL = round2(long.pnl)
	m.LongTrades = long.trades
	m.LongWinRate = round2(long.winRate())
	m.ShortPnL = round2(short.pnl)
	m.ShortTrades = short.trades
	m.ShortWinRate = round2(short.winRate())

	today := dateOf(now)
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	var todayPnL, weekPnL, monthPnL float64
	for _, t := range trades {
		d := dateOf(t.Date)
		if d.After(today) {
			continue
		}
		if d.Equal(today) {
			todayPnL += t.PnL
		}
		if !d.Before(weekStart) {
			weekPnL += t.PnL
		}
		if !d.Before(monthStart) {
			monthPnL += t.PnL
		}
	}
	m.TodayPnL = round2(todayPnL)
	m.WeekPnL = round2(weekPnL)
	m.MonthPnL = round2(monthPnL)

	m.Streaks = ComputeStreaks(trades)
	return m
}
