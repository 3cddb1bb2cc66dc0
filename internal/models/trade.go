package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Side of a completed round-trip trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// ParseSide maps free-form user input onto a Side. Anything mentioning
// "short" is short, everything else is long.
func ParseSide(s string) Side {
	if strings.Contains(strings.ToLower(s), "short") {
		return SideShort
	}
	return SideLong
}

// DateLayout is the layout used for trade dates on the wire.
const DateLayout = "2006-01-02"

// Trade represents a completed round-trip position owned by a user.
type Trade struct {
	gorm.Model
	UserID          uint      `gorm:"index;not null" json:"user_id"`
	Date            time.Time `gorm:"type:date;index;not null" json:"date"`
	Ticker          string    `gorm:"size:16;index;not null" json:"ticker"`
	Side            Side      `gorm:"size:8;not null" json:"side"`
	EntryTime       *Clock    `json:"entry_time"`
	ExitTime        *Clock    `json:"exit_time"`
	DurationSeconds *int64    `json:"duration_seconds"`
	EntryPrice      float64   `gorm:"not null" json:"entry_price"`
	ExitPrice       float64   `gorm:"not null" json:"exit_price"`
	Shares          float64   `gorm:"not null" json:"shares"`
	PnL             float64   `gorm:"column:pnl;not null" json:"pnl"`
	PnLPercent      *float64  `gorm:"column:pnl_percent" json:"pnl_percent"`
	Commissions     float64   `gorm:"not null;default:0" json:"commissions"`
	NetPnL          float64   `gorm:"column:net_pnl;not null" json:"net_pnl"`
	HighOfDay       *float64  `json:"high_of_day,omitempty"`
	LowOfDay        *float64  `json:"low_of_day,omitempty"`
	Notes           string    `gorm:"type:text" json:"notes,omitempty"`
	Setup           string    `gorm:"size:100" json:"setup,omitempty"`
	Tags            []Tag     `gorm:"many2many:trade_tags;" json:"tags"`
}

// RecomputeNetPnL keeps net_pnl = pnl - commissions.
func (t *Trade) RecomputeNetPnL() {
	t.NetPnL = t.PnL - t.Commissions
}

// RecomputeDuration sets the holding time from entry and exit times.
// A missing time or a negative duration leaves the duration unknown.
func (t *Trade) RecomputeDuration() {
	t.DurationSeconds = nil
	if t.EntryTime == nil || t.ExitTime == nil {
		return
	}
	d := t.ExitTime.Seconds() - t.EntryTime.Seconds()
	if d < 0 {
		return
	}
	t.DurationSeconds = &d
}
