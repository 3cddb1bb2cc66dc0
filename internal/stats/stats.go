// Package stats turns a collection of completed trades into the dashboard and
// report bundles served by the journal. Every function here is pure: it reads
// the slice it is given and never mutates it.
package stats

import (
	"math"
	"sort"
	"time"

	"trade-journal/internal/models"
)

// Outcome classifies a trade by the sign of its gross P&L.
type Outcome int

const (
	Scratch Outcome = iota
	Win
	Loss
)

// OutcomeOf classifies t.
func OutcomeOf(t models.Trade) Outcome {
	switch {
	case t.PnL > 0:
		return Win
	case t.PnL < 0:
		return Loss
	default:
		return Scratch
	}
}

func safeDiv(num, den float64) float64 {
	if den == 0 || math.IsNaN(den) {
		return 0
	}
	return num / den
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // no negative zero on the wire
	}
	return r
}

func round2(v float64) float64 { return round(v, 2) }

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev divides by n-1 and is 0 below two observations.
func sampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := mean(values)
	ss := 0.0
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(n-1))
}

// Chronological returns a copy of trades ordered by date, then entry time
// with missing times first. Ties keep their input order.
func Chronological(trades []models.Trade) []models.Trade {
	out := make([]models.Trade, len(trades))
	copy(out, trades)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		switch {
		case a.EntryTime == nil && b.EntryTime == nil:
			return false
		case a.EntryTime == nil:
			return true
		case b.EntryTime == nil:
			return false
		default:
			return *a.EntryTime < *b.EntryTime
		}
	})
	return out
}

// Streaks summarizes consecutive wins and losses.
type Streaks struct {
	Current int `json:"current_streak"`
	MaxWin  int `json:"max_win_streak"`
	MaxLoss int `json:"max_loss_streak"`
}

// ComputeStreaks walks trades chronologically. A scratch resets both runs.
// Current is positive for a trailing win run, negative for a trailing loss
// run and 0 after a scratch.
func ComputeStreaks(trades []models.Trade) Streaks {
	var s Streaks
	wins, losses := 0, 0
	for _, t := range Chronological(trades) {
		switch OutcomeOf(t) {
		case Win:
			wins++
			losses = 0
		case Loss:
			losses++
			wins = 0
		default:
			wins, losses = 0, 0
		}
		if wins > s.MaxWin {
			s.MaxWin = wins
		}
		if losses > s.MaxLoss {
			s.MaxLoss = losses
		}
	}
	switch {
	case wins > 0:
		s.Current = wins
	case losses > 0:
		s.Current = -losses
	}
	return s
}

// dailyPnL sums gross P&L per trade date.
func dailyPnL(trades []models.Trade) map[time.Time]float64 {
	days := make(map[time.Time]float64)
	for _, t := range trades {
		days[dateOf(t.Date)] += t.PnL
	}
	return days
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func minMax(values map[time.Time]float64) (lo, hi float64) {
	first := true
	for _, v := range values {
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// tally is the running count shared by the bucketed views.
type tally struct {
	pnl     float64
	trades  int
	winners int
	losers  int
	seconds int64
}

func (b *tally) add(t models.Trade) {
	b.pnl += t.PnL
	b.trades++
	switch OutcomeOf(t) {
	case Win:
		b.winners++
	case Loss:
		b.losers++
	}
	if t.DurationSeconds != nil {
		b.seconds += *t.DurationSeconds
	}
}

func (b tally) winRate() float64 {
	return safeDiv(float64(b.winners), float64(b.trades)) * 100
}
