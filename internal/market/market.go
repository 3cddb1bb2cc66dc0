// Package market holds price bars and the reduction of intraday bars into
// one candle per calendar day.
package market

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Bar is a single OHLCV observation. Intraday sources produce one per minute.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid reports whether every OHLC field is present.
func (b Bar) Valid() bool {
	return !math.IsNaN(b.Open) && !math.IsNaN(b.High) && !math.IsNaN(b.Low) && !math.IsNaN(b.Close)
}

// Candle is the daily aggregate of a day's bars. Date is midnight UTC of the
// calendar date the bars fell on.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Bar returns the candle as a bar stamped at its date.
func (c Candle) Bar() Bar {
	return Bar{Time: c.Date, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
}

// DayOf truncates t to its calendar date, expressed as midnight UTC.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AggregateToDaily reduces bars to one candle per calendar date, ascending.
// Bars with missing OHLC fields are ignored. The result is never nil.
func AggregateToDaily(bars []Bar) []Candle {
	valid := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if b.Valid() {
			valid = append(valid, b)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Time.Before(valid[j].Time)
	})

	candles := make([]Candle, 0)
	index := make(map[time.Time]int)
	for _, b := range valid {
		day := DayOf(b.Time)
		i, ok := index[day]
		if !ok {
			index[day] = len(candles)
			candles = append(candles, Candle{
				Date:   day,
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
			})
			continue
		}
		c := &candles[i]
		c.High = math.Max(c.High, b.High)
		c.Low = math.Min(c.Low, b.Low)
		c.Close = b.Close
		c.Volume += b.Volume
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Date.Before(candles[j].Date)
	})
	return candles
}

// Partition is one stored slice of a ticker's bars, e.g. a month file.
type Partition struct {
	Source  string
	ModTime time.Time
	Bars    []Bar
}

// AggregatePartitions aggregates each partition on its own and merges the
// results. When partitions overlap on a date the candle from the most recently
// modified partition wins; equal modification times fall back to the
// lexically greater source.
func AggregatePartitions(parts []Partition) []Candle {
	ordered := make([]Partition, len(parts))
	copy(ordered, parts)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ModTime.Equal(ordered[j].ModTime) {
			return ordered[i].ModTime.Before(ordered[j].ModTime)
		}
		return strings.Compare(ordered[i].Source, ordered[j].Source) < 0
	})

	byDate := make(map[time.Time]Candle)
	for _, p := range ordered {
		for _, c := range AggregateToDaily(p.Bars) {
			byDate[c.Date] = c
		}
	}

	candles := make([]Candle, 0, len(byDate))
	for _, c := range byDate {
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Date.Before(candles[j].Date)
	})
	return candles
}

// Slice returns the candles whose dates fall within [from, to]. Zero bounds
// are open.
func Slice(candles []Candle, from, to time.Time) []Candle {
	out := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if !from.IsZero() && c.Date.Before(DayOf(from)) {
			continue
		}
		if !to.IsZero() && c.Date.After(DayOf(to)) {
			continue
		}
		out = append(out, c)
	}
	return out
}
