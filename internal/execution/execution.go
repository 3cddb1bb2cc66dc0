// Package execution rebuilds round-trip trades from broker fill rows.
package execution

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"trade-journal/internal/models"

	"github.com/shopspring/decimal"
)

// Action is a normalized fill side.
type Action int

const (
	ActionUnknown Action = iota
	ActionBuy
	ActionSell
	ActionShortSell
	ActionBuyToCover
)

// ParseAction maps broker side codes onto an Action.
func ParseAction(side string) Action {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(side), " ", "")) {
	case "B", "BUY", "BOT":
		return ActionBuy
	case "S", "SELL", "SLD":
		return ActionSell
	case "SS", "SELLSHORT", "SHORT":
		return ActionShortSell
	case "BC", "BUYTOCOVER", "COVER", "BTC":
		return ActionBuyToCover
	default:
		return ActionUnknown
	}
}

// Execution is a single fill as reported by a broker.
type Execution struct {
	Row        int
	Date       time.Time
	Time       *models.Clock
	Symbol     string
	Side       string
	Quantity   float64
	Price      float64
	Commission float64
	TransFee   float64
	ECNFee     float64
}

// Fees is the total of all per-fill charges.
func (e Execution) Fees() float64 {
	return e.Commission + e.TransFee + e.ECNFee
}

func (e Execution) validate() error {
	switch {
	case strings.TrimSpace(e.Symbol) == "":
		return fmt.Errorf("missing symbol")
	case e.Date.IsZero():
		return fmt.Errorf("missing date")
	case ParseAction(e.Side) == ActionUnknown:
		return fmt.Errorf("unknown side %q", e.Side)
	case e.Quantity <= 0:
		return fmt.Errorf("quantity must be positive, got %v", e.Quantity)
	case e.Price <= 0:
		return fmt.Errorf("price must be positive, got %v", e.Price)
	}
	return nil
}

type groupKey struct {
	symbol string
	date   time.Time
}

type group struct {
	key   groupKey
	fills map[Action][]Execution
}

// Reconstruct groups fills by symbol and date and emits at most one long and
// one short trade per group. Invalid rows are skipped and reported as
// "Row N: reason" messages; they never abort the run.
func Reconstruct(execs []Execution) ([]models.Trade, []string) {
	var errs []string
	groups := make(map[groupKey]*group)
	var order []groupKey

	for i, e := range execs {
		row := e.Row
		if row == 0 {
			row = i + 1
		}
		if err := e.validate(); err != nil {
			errs = append(errs, fmt.Sprintf("Row %d: %v", row, err))
			continue
		}
		e.Row = row
		key := groupKey{
			symbol: strings.ToUpper(strings.TrimSpace(e.Symbol)),
			date:   time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, time.UTC),
		}
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, fills: make(map[Action][]Execution)}
			groups[key] = g
			order = append(order, key)
		}
		action := ParseAction(e.Side)
		g.fills[action] = append(g.fills[action], e)
	}

	sort.Slice(order, func(i, j int) bool {
		if !order[i].date.Equal(order[j].date) {
			return order[i].date.Before(order[j].date)
		}
		return order[i].symbol < order[j].symbol
	})

	trades := make([]models.Trade, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if t, ok := build(key, models.SideLong, g.fills[ActionBuy], g.fills[ActionSell]); ok {
			trades = append(trades, t)
		}
		if t, ok := build(key, models.SideShort, g.fills[ActionShortSell], g.fills[ActionBuyToCover]); ok {
			trades = append(trades, t)
		}
	}
	return trades, errs
}

// build matches one side's entry and exit buckets into a single trade.
func build(key groupKey, side models.Side, entries, exits []Execution) (models.Trade, bool) {
	entryQty, entryAvg := weighted(entries)
	exitQty, exitAvg := weighted(exits)

	matched := decimal.Min(entryQty, exitQty)
	if !matched.IsPositive() {
		return models.Trade{}, false
	}

	var pnl decimal.Decimal
	if side == models.SideLong {
		pnl = exitAvg.Sub(entryAvg).Mul(matched)
	} else {
		pnl = entryAvg.Sub(exitAvg).Mul(matched)
	}

	fees := decimal.Zero
	for _, e := range entries {
		fees = fees.Add(decimal.NewFromFloat(e.Fees()))
	}
	for _, e := range exits {
		fees = fees.Add(decimal.NewFromFloat(e.Fees()))
	}

	t := models.Trade{
		Date:        key.date,
		Ticker:      key.symbol,
		Side:        side,
		EntryPrice:  entryAvg.InexactFloat64(),
		ExitPrice:   exitAvg.InexactFloat64(),
		Shares:      matched.InexactFloat64(),
		PnL:         pnl.InexactFloat64(),
		Commissions: fees.InexactFloat64(),
		NetPnL:      pnl.Sub(fees).InexactFloat64(),
	}

	cost := entryAvg.Mul(matched)
	if cost.IsPositive() {
		pct := pnl.Div(cost).Mul(decimal.NewFromInt(100)).InexactFloat64()
		t.PnLPercent = &pct
	}

	t.EntryTime = firstTime(entries)
	t.ExitTime = lastTime(exits)
	t.RecomputeDuration()
	return t, true
}

// weighted returns the total quantity and the quantity-weighted average price.
func weighted(fills []Execution) (decimal.Decimal, decimal.Decimal) {
	qty := decimal.Zero
	notional := decimal.Zero
	for _, f := range fills {
		q := decimal.NewFromFloat(f.Quantity)
		qty = qty.Add(q)
		notional = notional.Add(q.Mul(decimal.NewFromFloat(f.Price)))
	}
	if qty.IsZero() {
		return qty, decimal.Zero
	}
	return qty, notional.DivRound(qty, 8)
}

// chronological orders fills by time of day; fills without a time sort first
// and ties keep row order.
func chronological(fills []Execution) []Execution {
	out := make([]Execution, len(fills))
	copy(out, fills)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Time, out[j].Time
		switch {
		case a == nil && b == nil:
			return out[i].Row < out[j].Row
		case a == nil:
			return true
		case b == nil:
			return false
		case *a != *b:
			return *a < *b
		default:
			return out[i].Row < out[j].Row
		}
	})
	return out
}

func firstTime(fills []Execution) *models.Clock {
	for _, f := range chronological(fills) {
		if f.Time != nil {
			c := *f.Time
			return &c
		}
	}
	return nil
}

func lastTime(fills []Execution) *models.Clock {
	sorted := chronological(fills)
	if len(sorted) == 0 {
		return nil
	}
	if t := sorted[len(sorted)-1].Time; t != nil {
		c := *t
		return &c
	}
	return nil
}
