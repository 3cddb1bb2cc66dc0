package stats

import (
	"fmt"
	"math"

	"trade-journal/internal/models"
)

var dayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayStats is one weekday bucket. DayIndex 0 is Monday.
type DayStats struct {
	DayIndex int     `json:"day_index"`
	DayName  string  `json:"day_name"`
	TotalPnL float64 `json:"total_pnl"`
	Trades   int     `json:"trades"`
	Winners  int     `json:"winners"`
	Losers   int     `json:"losers"`
	WinRate  float64 `json:"win_rate"`
}

// HourStats is one hour-of-entry bucket.
type HourStats struct {
	Hour      int     `json:"hour"`
	HourLabel string  `json:"hour_label"`
	TotalPnL  float64 `json:"total_pnl"`
	Trades    int     `json:"trades"`
	Winners   int     `json:"winners"`
	Losers    int     `json:"losers"`
	WinRate   float64 `json:"win_rate"`
}

// DaysTimesStats is the weekday and hour-of-entry breakdown.
type DaysTimesStats struct {
	ByDay  []DayStats  `json:"by_day"`
	ByHour []HourStats `json:"by_hour"`
}

// HourLabel renders a 24h hour as "9 AM", "12 PM" and so on.
func HourLabel(hour int) string {
	switch {
	case hour == 0:
		return "12 AM"
	case hour < 12:
		return fmt.Sprintf("%d AM", hour)
	case hour == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", hour-12)
	}
}

// DaysTimes buckets trades by weekday of the trade date and by hour of entry.
// All seven weekdays are always reported; hours only when non-empty. Trades
// without an entry time count toward their weekday only.
func DaysTimes(trades []models.Trade) DaysTimesStats {
	var days [7]tally
	var hours [24]tally
	for _, t := range trades {
		dow := (int(t.Date.Weekday()) + 6) % 7
		days[dow].add(t)
		if t.EntryTime != nil {
			hours[t.EntryTime.Hour()%24].add(t)
		}
	}

	out := DaysTimesStats{
		ByDay:  make([]DayStats, 0, 7),
		ByHour: make([]HourStats, 0),
	}
	for i, d := range days {
		out.ByDay = append(out.ByDay, DayStats{
			DayIndex: i,
			DayName:  dayNames[i],
			TotalPnL: round2(d.pnl),
			Trades:   d.trades,
			Winners:  d.winners,
			Losers:   d.losers,
			WinRate:  round(d.winRate(), 1),
		})
	}
	for i, h := range hours {
		if h.trades == 0 {
			continue
		}
		out.ByHour = append(out.ByHour, HourStats{
			Hour:      i,
			HourLabel: HourLabel(i),
			TotalPnL:  round2(h.pnl),
			Trades:    h.trades,
			Winners:   h.winners,
			Losers:    h.losers,
			WinRate:   round(h.winRate(), 1),
		})
	}
	return out
}

// openBound stands in for an unbounded upper edge in responses.
const openBound = 999999

type bucket struct {
	min, max float64
	label    string
}

var priceBuckets = []bucket{
	{0, 10, "$0-10"},
	{10, 25, "$10-25"},
	{25, 50, "$25-50"},
	{50, 100, "$50-100"},
	{100, 250, "$100-250"},
	{250, math.Inf(1), "$250+"},
}

var volumeBuckets = []bucket{
	{1, 100, "1-100"},
	{100, 500, "100-500"},
	{500, 1000, "500-1K"},
	{1000, 5000, "1K-5K"},
	{5000, math.Inf(1), "5K+"},
}

// bucketIndex returns the first bucket containing v, or -1.
func bucketIndex(buckets []bucket, v float64) int {
	for i, b := range buckets {
		if v >= b.min && v < b.max {
			return i
		}
	}
	return -1
}

func upper(b bucket) float64 {
	if math.IsInf(b.max, 1) {
		return openBound
	}
	return b.max
}

// PriceRangeStats is one entry-price bucket.
type PriceRangeStats struct {
	RangeLabel string  `json:"range_label"`
	MinPrice   float64 `json:"min_price"`
	MaxPrice   float64 `json:"max_price"`
	TotalPnL   float64 `json:"total_pnl"`
	Trades     int     `json:"trades"`
	Winners    int     `json:"winners"`
	Losers     int     `json:"losers"`
	WinRate    float64 `json:"win_rate"`
}

// VolumeRangeStats is one share-count bucket.
type VolumeRangeStats struct {
	RangeLabel string  `json:"range_label"`
	MinShares  int     `json:"min_shares"`
	MaxShares  int     `json:"max_shares"`
	TotalPnL   float64 `json:"total_pnl"`
	Trades     int     `json:"trades"`
	Winners    int     `json:"winners"`
	Losers     int     `json:"losers"`
	WinRate    float64 `json:"win_rate"`
}

// PriceVolumeStats is the price and volume breakdown.
type PriceVolumeStats struct {
	ByPrice  []PriceRangeStats  `json:"by_price"`
	ByVolume []VolumeRangeStats `json:"by_volume"`
}

// PriceVolume buckets trades by entry price and by whole shares. Empty
// buckets are omitted.
func PriceVolume(trades []models.Trade) PriceVolumeStats {
	prices := make([]tally, len(priceBuckets))
	volumes := make([]tally, len(volumeBuckets))
	for _, t := range trades {
		if i := bucketIndex(priceBuckets, t.EntryPrice); i >= 0 {
			prices[i].add(t)
		}
		if i := bucketIndex(volumeBuckets, math.Floor(t.Shares)); i >= 0 {
			volumes[i].add(t)
		}
	}

	out := PriceVolumeStats{
		ByPrice:  make([]PriceRangeStats, 0),
		ByVolume: make([]VolumeRangeStats, 0),
	}
	for i, b := range priceBuckets {
		p := prices[i]
		if p.trades == 0 {
			continue
		}
		out.ByPrice = append(out.ByPrice, PriceRangeStats{
			RangeLabel: b.label,
			MinPrice:   b.min,
			MaxPrice:   upper(b),
			TotalPnL:   round2(p.pnl),
			Trades:     p.trades,
			Winners:    p.winners,
			Losers:     p.losers,
			WinRate:    round(p.winRate(), 1),
		})
	}
	for i, b := range volumeBuckets {
		v := volumes[i]
		if v.trades == 0 {
			continue
		}
		out.ByVolume = append(out.ByVolume, VolumeRangeStats{
			RangeLabel: b.label,
			MinShares:  int(b.min),
			MaxShares:  int(upper(b)),
			TotalPnL:   round2(v.pnl),
			Trades:     v.trades,
			Winners:    v.winners,
			Losers:     v.losers,
			WinRate:    round(v.winRate(), 1),
		})
	}
	return out
}
