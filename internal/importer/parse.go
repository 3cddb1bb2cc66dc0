package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"trade-journal/internal/execution"
	"trade-journal/internal/models"
	"trade-journal/internal/schema"
)

// Format of an uploaded file.
type Format string

const (
	FormatTrades     Format = "trades"
	FormatExecutions Format = "executions"
)

// RowError is a problem with a single data row. Row is 1-based and excludes
// the header.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %v", e.Row, e.Err)
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006/01/02",
	"01-02-06",
	"02-Jan-2006",
	"Jan 2, 2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDate accepts the date layouts brokers and spreadsheets commonly emit.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParseNumber accepts "$1,234.50", "(12.5)" and plain numbers. Empty is 0.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if negative {
		v = -v
	}
	return v, nil
}

// Parser converts sheets using a column table.
type Parser struct {
	table *schema.Table
	now   func() time.Time
}

// NewParser creates a parser. now supplies the date for trade rows that
// carry none.
func NewParser(table *schema.Table, now func() time.Time) *Parser {
	if now == nil {
		now = time.Now
	}
	return &Parser{table: table, now: now}
}

// DetectFormat treats a file as broker executions when it has the fill
// columns and no paired entry/exit prices.
func (p *Parser) DetectFormat(headers []string) Format {
	if _, err := p.table.Resolve(schema.SetExecution, headers); err != nil {
		return FormatTrades
	}
	m, _ := p.table.Resolve(schema.SetTrade, headers)
	if m.Has("entry_price") || m.Has("exit_price") {
		return FormatTrades
	}
	return FormatExecutions
}

// ParseExecutions reads fill rows. Missing required columns fail the sheet;
// bad rows are reported and skipped.
func (p *Parser) ParseExecutions(s *Sheet) ([]execution.Execution, []RowError, error) {
	m, err := p.table.Resolve(schema.SetExecution, s.Headers)
	if err != nil {
		return nil, nil, err
	}

	var out []execution.Execution
	var errs []RowError
	for i, row := range s.Rows {
		e, err := p.execution(m, row)
		if err != nil {
			errs = append(errs, RowError{Row: i + 1, Err: err})
			continue
		}
		e.Row = i + 1
		out = append(out, e)
	}
	return out, errs, nil
}

func (p *Parser) execution(m schema.Mapping, row []string) (execution.Execution, error) {
	var e execution.Execution
	var err error

	e.Symbol = strings.ToUpper(m.Value(row, "symbol"))
	e.Side = m.Value(row, "side")
	if e.Date, err = p.date(m, row); err != nil {
		return e, err
	}
	if v := m.Value(row, "time"); v != "" {
		c, err := models.ParseClock(v)
		if err != nil {
			return e, err
		}
		e.Time = &c
	}
	fields := []struct {
		name string
		dst  *float64
	}{
		{"quantity", &e.Quantity},
		{"price", &e.Price},
		{"commission", &e.Commission},
		{"transfee", &e.TransFee},
		{"ecnfee", &e.ECNFee},
	}
	for _, f := range fields {
		v, err := ParseNumber(m.Value(row, f.name))
		if err != nil {
			return e, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = math.Abs(v)
	}
	return e, nil
}

func (p *Parser) date(m schema.Mapping, row []string) (time.Time, error) {
	v := m.Value(row, "date")
	if v == "" {
		now := p.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return ParseDate(v)
}

// ParseTrades reads already-paired trade rows.
func (p *Parser) ParseTrades(s *Sheet) ([]models.Trade, []RowError, error) {
	m, err := p.table.Resolve(schema.SetTrade, s.Headers)
	if err != nil {
		return nil, nil, err
	}

	var out []models.Trade
	var errs []RowError
	for i, row := range s.Rows {
		t, err := p.trade(m, row)
		if err != nil {
			errs = append(errs, RowError{Row: i + 1, Err: err})
			continue
		}
		out = append(out, t)
	}
	return out, errs, nil
}

func (p *Parser) trade(m schema.Mapping, row []string) (models.Trade, error) {
	var t models.Trade
	var err error

	t.Ticker = strings.ToUpper(m.Value(row, "ticker"))
	if t.Ticker == "" {
		return t, fmt.Errorf("missing ticker")
	}
	t.Side = models.ParseSide(m.Value(row, "side"))
	if t.Date, err = p.date(m, row); err != nil {
		return t, err
	}
	for _, f := range []struct {
		name string
		dst  **models.Clock
	}{{"entry_time", &t.EntryTime}, {"exit_time", &t.ExitTime}} {
		v := m.Value(row, f.name)
		if v == "" {
			continue
		}
		c, err := models.ParseClock(v)
		if err != nil {
			return t, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = &c
	}

	fields := []struct {
		name string
		dst  *float64
	}{
		{"entry_price", &t.EntryPrice},
		{"exit_price", &t.ExitPrice},
		{"shares", &t.Shares},
		{"pnl", &t.PnL},
		{"commissions", &t.Commissions},
	}
	for _, f := range fields {
		v, err := ParseNumber(m.Value(row, f.name))
		if err != nil {
			return t, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	t.Shares = math.Floor(math.Abs(t.Shares))
	t.Commissions = math.Abs(t.Commissions)

	switch {
	case t.Shares <= 0:
		return t, fmt.Errorf("shares must be positive")
	case t.EntryPrice <= 0 || t.ExitPrice <= 0:
		return t, fmt.Errorf("entry and exit prices must be positive")
	}

	if !m.Has("pnl") {
		diff := t.ExitPrice - t.EntryPrice
		if t.Side == models.SideShort {
			diff = -diff
		}
		t.PnL = diff * t.Shares
	}
	if cost := t.EntryPrice * t.Shares; cost > 0 {
		pct := t.PnL / cost * 100
		t.PnLPercent = &pct
	}
	t.Setup = m.Value(row, "setup")
	t.Notes = m.Value(row, "notes")
	t.RecomputeNetPnL()
	t.RecomputeDuration()
	return t, nil
}
