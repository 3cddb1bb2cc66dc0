package stats

import (
	"math"
	"sort"
	"time"

	"trade-journal/internal/models"
)

type CalendarDay struct {
	Date    string  `json:"date"`
	PnL     float64 `json:"pnl"`
	Trades  int     `json:"trades"`
	WinRate float64 `json:"win_rate"`
	IsGreen bool    `json:"is_green"`
}

type MonthlyStats struct {
	Month       int           `json:"month"`
	Year        int           `json:"year"`
	TotalPnL    float64       `json:"total_pnl"`
	TotalTrades int           `json:"total_trades"`
	WinRate     float64       `json:"win_rate"`
	TradingDays int           `json:"trading_days"`
	AvgDailyPnL float64       `json:"avg_daily_pnl"`
	BestDay     float64       `json:"best_day"`
	WorstDay    float64       `json:"worst_day"`
	Calendar    []CalendarDay `json:"calendar"`
}

// MonthBounds returns the first and last calendar day of a month.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// Calendar summarizes one month day by day. Trades outside the month are
// ignored; days without trades are not listed.
func Calendar(trades []models.Trade, year int, month time.Month) MonthlyStats {
	first, last := MonthBounds(year, month)
	out := MonthlyStats{Month: int(month), Year: year, Calendar: make([]CalendarDay, 0)}

	days := make(map[time.Time]*tally)
	var total tally
	for _, t := range trades {
		d := dateOf(t.Date)
		if d.Before(first) || d.After(last) {
			continue
		}
		if days[d] == nil {
			days[d] = &tally{}
		}
		days[d].add(t)
		total.add(t)
	}

	dates := make([]time.Time, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	best, worst := math.Inf(-1), math.Inf(1)
	for _, d := range dates {
		day := days[d]
		best = math.Max(best, day.pnl)
		worst = math.Min(worst, day.pnl)
		out.Calendar = append(out.Calendar, CalendarDay{
			Date:    d.Format(models.DateLayout),
			PnL:     round2(day.pnl),
			Trades:  day.trades,
			WinRate: round2(day.winRate()),
			IsGreen: day.pnl > 0,
		})
	}

	out.TotalPnL = round2(total.pnl)
	out.TotalTrades = total.trades
	out.WinRate = round2(total.winRate())
	out.TradingDays = len(dates)
	out.AvgDailyPnL = round2(safeDiv(total.pnl, float64(len(dates))))
	if len(dates) > 0 {
		out.BestDay = round2(best)
		out.WorstDay = round2(worst)
	}
	return out
}

type TickerStats struct {
	Ticker   string  `json:"ticker"`
	TotalPnL float64 `json:"total_pnl"`
	Trades   int     `json:"trades"`
	WinRate  float64 `json:"win_rate"`
	AvgPnL   float64 `json:"avg_pnl"`
}

// Tickers ranks tickers by absolute P&L and returns at most limit of them.
// A non-positive limit returns every ticker.
func Tickers(trades []models.Trade, limit int) []TickerStats {
	byTicker := make(map[string]*tally)
	for _, t := range trades {
		if byTicker[t.Ticker] == nil {
			byTicker[t.Ticker] = &tally{}
		}
		byTicker[t.Ticker].add(t)
	}

	out := make([]TickerStats, 0, len(byTicker))
	for ticker, b := range byTicker {
		out = append(out, TickerStats{
			Ticker:   ticker,
			TotalPnL: b.pnl,
			Trades:   b.trades,
			WinRate:  round2(b.winRate()),
			AvgPnL:   round2(safeDiv(b.pnl, float64(b.trades))),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].TotalPnL), math.Abs(out[j].TotalPnL)
		if ai != aj {
			return ai > aj
		}
		return out[i].Ticker < out[j].Ticker
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].TotalPnL = round2(out[i].TotalPnL)
	}
	return out
}

type TimingStats struct {
	Hour               int     `json:"hour"`
	TotalPnL           float64 `json:"total_pnl"`
	Trades             int     `json:"trades"`
	WinRate            float64 `json:"win_rate"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}

// Timing groups trades with an entry time by hour of entry.
func Timing(trades []models.Trade) []TimingStats {
	var hours [24]tally
	for _, t := range trades {
		if t.EntryTime != nil {
			hours[t.EntryTime.Hour()%24].add(t)
		}
	}

	out := make([]TimingStats, 0)
	for hour, h := range hours {
		if h.trades == 0 {
			continue
		}
		out = append(out, TimingStats{
			Hour:               hour,
			TotalPnL:           round2(h.pnl),
			Trades:             h.trades,
			WinRate:            round2(h.winRate()),
			AvgDurationMinutes: round2(safeDiv(float64(h.seconds), float64(h.trades)) / 60),
		})
	}
	return out
}
