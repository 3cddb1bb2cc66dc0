// Package gaps finds gap days in a daily candle series and summarizes how
// those days and the sessions after them traded.
package gaps

import (
	"math"
	"sort"
	"strings"

	"trade-journal/internal/market"
)

// DefaultThreshold is the minimum absolute gap, in percent, when none is given.
const DefaultThreshold = 10.0

// boundary tolerance so a gap of exactly the threshold survives float error.
const epsilon = 1e-9

const (
	DirectionUp   = "up"
	DirectionDown = "down"

	CloseGreen = "green"
	CloseRed   = "red"
)

// DateLayout is the wire format of gap dates.
const DateLayout = "2006-01-02"

// Record is a single qualifying gap day.
type Record struct {
	Date           string  `json:"date"`
	Ticker         string  `json:"ticker"`
	GapValue       float64 `json:"gap_value"`
	Direction      string  `json:"direction"`
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	Close          float64 `json:"close"`
	PrevClose      float64 `json:"prev_close"`
	Volume         float64 `json:"volume"`
	HighSpike      float64 `json:"high_spike"`
	LowSpike       float64 `json:"low_spike"`
	Return         float64 `json:"return"`
	Range          float64 `json:"range"`
	HighGap        float64 `json:"high_gap"`
	HighFade       float64 `json:"high_fade"`
	CloseDirection string  `json:"close_direction"`
}

// session is the derived field set shared by gap days and day-2 rows.
type session struct {
	gapValue  float64
	highSpike float64
	lowSpike  float64
	ret       float64
	rng       float64
	highGap   float64
	highFade  float64
	red       bool
}

func pct(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den * 100
}

func derive(c market.Candle, prevClose float64) session {
	s := session{
		gapValue: pct(c.Open-prevClose, prevClose),
		highGap:  pct(c.High-prevClose, prevClose),
		highFade: pct(c.High-c.Close, c.High),
		red:      !(c.Close > c.Open),
	}
	if c.Open != 0 {
		s.highSpike = pct(c.High-c.Open, c.Open)
		s.lowSpike = pct(c.Low-c.Open, c.Open)
		s.ret = pct(c.Close-c.Open, c.Open)
		s.rng = pct(c.High-c.Low, c.Open)
	}
	return s
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}

func sorted(candles []market.Candle) []market.Candle {
	out := make([]market.Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Detect returns every candle whose open is at least threshold percent away
// from the preceding candle's close. The predecessor is the previous entry
// in the series, not the previous calendar day. A non-positive threshold
// or NaN threshold means DefaultThreshold.
func Detect(ticker string, candles []market.Candle, threshold float64) []Record {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultThreshold
	}
	ticker = strings.ToUpper(ticker)
	series := sorted(candles)

	records := make([]Record, 0)
	for i := 1; i < len(series); i++ {
		prevClose := series[i-1].Close
		if prevClose <= 0 || math.IsNaN(prevClose) {
			continue
		}
		c := series[i]
		s := derive(c, prevClose)
		if math.Abs(s.gapValue) < threshold-epsilon {
			continue
		}

		r := Record{
			Date:           c.Date.Format(DateLayout),
			Ticker:         ticker,
			GapValue:       round(s.gapValue, 2),
			Direction:      DirectionDown,
			Open:           round(c.Open, 4),
			High:           round(c.High, 4),
			Low:            round(c.Low, 4),
			Close:          round(c.Close, 4),
			PrevClose:      round(prevClose, 4),
			Volume:         math.Floor(c.Volume),
			HighSpike:      round(s.highSpike, 2),
			LowSpike:       round(s.lowSpike, 2),
			Return:         round(s.ret, 2),
			Range:          round(s.rng, 2),
			HighGap:        round(s.highGap, 2),
			HighFade:       round(s.highFade, 2),
			CloseDirection: CloseGreen,
		}
		if s.gapValue > 0 {
			r.Direction = DirectionUp
		}
		if s.red {
			r.CloseDirection = CloseRed
		}
		records = append(records, r)
	}
	return records
}
