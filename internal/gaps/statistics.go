package gaps

import (
	"trade-journal/internal/market"
)

// HistoryLimit caps the gap list embedded in Statistics.
const HistoryLimit = 20

// Unavailable marks fields that need premarket or intraday data.
const Unavailable = "--"

// DayStats aggregates one session type (gap day or the day after). Fields
// backed by premarket or intraday timing are never estimated: strings carry
// Unavailable and numbers are nil.
type DayStats struct {
	AvgVolume            string   `json:"avg_volume"`
	AvgDollarVolume      string   `json:"avg_dollar_volume"`
	AvgPremarketVolume   string   `json:"avg_premarket_volume"`
	AvgMarketCap         string   `json:"avg_market_cap"`
	AvgHODTime           string   `json:"avg_hod_time"`
	AvgLODTime           string   `json:"avg_lod_time"`
	AvgPremarketHighTime string   `json:"avg_premarket_high_time"`
	AvgPremarketLowTime  string   `json:"avg_premarket_low_time"`
	AvgPremarketHighFade *float64 `json:"avg_premarket_high_fade"`
	AvgCloseRed          float64  `json:"avg_close_red"`
	AvgGapValue          float64  `json:"avg_gap_value"`
	AvgHighSpike         float64  `json:"avg_high_spike"`
	AvgLowSpike          float64  `json:"avg_low_spike"`
	AvgRange             float64  `json:"avg_range"`
	AvgReturn            float64  `json:"avg_return"`
	AvgChange            float64  `json:"avg_change"`
	AvgHighGap           float64  `json:"avg_high_gap"`
	AvgHighFade          float64  `json:"avg_high_fade"`
	AvgHighToPMHChange   *float64 `json:"avg_high_to_pmh_change"`
	AvgCloseToPMHChange  *float64 `json:"avg_close_to_pmh_change"`
	AvgPremarketHighGap  *float64 `json:"avg_premarket_high_gap"`
}

// Statistics is the gap summary for one ticker.
type Statistics struct {
	Ticker             string   `json:"ticker"`
	NumberOfGaps       int      `json:"number_of_gaps"`
	AvgGapValue        float64  `json:"avg_gap_value"`
	AvgVolume          string   `json:"avg_volume"`
	AvgPremarketVolume string   `json:"avg_premarket_volume"`
	GapDay             DayStats `json:"gap_day"`
	Day2               DayStats `json:"day2"`
	Gaps               []Record `json:"gaps"`
}

// EmptyDayStats is the bundle reported when a session type has no rows.
func EmptyDayStats() DayStats {
	return DayStats{
		AvgVolume:            "0",
		AvgDollarVolume:      "0",
		AvgPremarketVolume:   Unavailable,
		AvgMarketCap:         Unavailable,
		AvgHODTime:           Unavailable,
		AvgLODTime:           Unavailable,
		AvgPremarketHighTime: Unavailable,
		AvgPremarketLowTime:  Unavailable,
	}
}

// accumulator sums the per-row fields of one session type.
type accumulator struct {
	n            int
	volume       float64
	dollarVolume float64
	red          int
	gapValue     float64
	highSpike    float64
	lowSpike     float64
	ret          float64
	rng          float64
	highGap      float64
	highFade     float64
	open         float64
	spread       float64
}

func (a *accumulator) mean(sum float64) float64 {
	if a.n == 0 {
		return 0
	}
	return sum / float64(a.n)
}

func (a *accumulator) dayStats(avgRange float64) DayStats {
	if a.n == 0 {
		return EmptyDayStats()
	}
	d := EmptyDayStats()
	avgGap := round(a.mean(a.gapValue), 2)
	d.AvgVolume = FormatVolume(a.mean(a.volume))
	d.AvgDollarVolume = FormatDollars(a.mean(a.dollarVolume))
	d.AvgCloseRed = round(float64(a.red)/float64(a.n)*100, 2)
	d.AvgGapValue = avgGap
	d.AvgChange = avgGap
	d.AvgHighSpike = round(a.mean(a.highSpike), 2)
	d.AvgLowSpike = round(a.mean(a.lowSpike), 2)
	d.AvgRange = round(avgRange, 2)
	d.AvgReturn = round(a.mean(a.ret), 2)
	d.AvgHighGap = round(a.mean(a.highGap), 2)
	d.AvgHighFade = round(a.mean(a.highFade), 2)
	return d
}

// ComputeStatistics summarizes gaps detected on candles. Gap-day averages
// are taken over the records themselves; the gap-day range is the ratio of
// mean (high-low) to mean open. Day 2 is the next candle in the series after
// each gap, with the gap day's close as its previous close; its range is the
// mean of per-row ranges. Day-2 rows with a zero open are skipped.
func ComputeStatistics(candles []market.Candle, records []Record) Statistics {
	st := Statistics{
		AvgVolume:          "0",
		AvgPremarketVolume: Unavailable,
		GapDay:             EmptyDayStats(),
		Day2:               EmptyDayStats(),
		Gaps:               make([]Record, 0),
	}
	if len(records) == 0 {
		return st
	}
	st.Ticker = records[0].Ticker
	st.NumberOfGaps = len(records)

	var gapDay accumulator
	for _, r := range records {
		gapDay.n++
		gapDay.volume += r.Volume
		gapDay.dollarVolume += r.Open * r.Volume
		if r.CloseDirection == CloseRed {
			gapDay.red++
		}
		gapDay.gapValue += r.GapValue
		gapDay.highSpike += r.HighSpike
		gapDay.lowSpike += r.LowSpike
		gapDay.ret += r.Return
		gapDay.highGap += r.HighGap
		gapDay.highFade += r.HighFade
		gapDay.open += r.Open
		gapDay.spread += r.High - r.Low
	}
	st.GapDay = gapDay.dayStats(pct(gapDay.mean(gapDay.spread), gapDay.mean(gapDay.open)))
	st.AvgGapValue = st.GapDay.AvgGapValue
	st.AvgVolume = st.GapDay.AvgVolume

	series := sorted(candles)
	position := make(map[string]int, len(series))
	for i, c := range series {
		key := c.Date.Format(DateLayout)
		if _, ok := position[key]; !ok {
			position[key] = i
		}
	}

	var day2 accumulator
	for _, r := range records {
		i, ok := position[r.Date]
		if !ok || i+1 >= len(series) {
			continue
		}
		gapDayCandle, next := series[i], series[i+1]
		if next.Open == 0 {
			continue
		}
		s := derive(next, gapDayCandle.Close)
		day2.n++
		day2.volume += next.Volume
		day2.dollarVolume += next.Open * next.Volume
		if s.red {
			day2.red++
		}
		day2.gapValue += s.gapValue
		day2.highSpike += s.highSpike
		day2.lowSpike += s.lowSpike
		day2.ret += s.ret
		day2.rng += s.rng
		day2.highGap += s.highGap
		day2.highFade += s.highFade
	}
	st.Day2 = day2.dayStats(day2.mean(day2.rng))

	limit := HistoryLimit
	if len(records) < limit {
		limit = len(records)
	}
	st.Gaps = append(st.Gaps, records[:limit]...)
	return st
}
