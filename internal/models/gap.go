package models

import (
	"time"

	"gorm.io/gorm"
)

// Gap is a persisted gap day produced by the batch gap scan.
type Gap struct {
	gorm.Model
	Ticker    string    `gorm:"uniqueIndex:idx_gap_ticker_date;size:16;not null" json:"ticker"`
	Date      time.Time `gorm:"uniqueIndex:idx_gap_ticker_date;type:date;not null" json:"date"`
	GapPct    float64   `gorm:"index;not null" json:"gap_pct"`
	Direction string    `gorm:"size:4;not null" json:"direction"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	PrevClose float64   `json:"prev_close"`
	Volume    float64   `json:"volume"`
	RangePct  float64   `json:"range_pct"`
}
