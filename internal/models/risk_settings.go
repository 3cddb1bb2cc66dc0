package models

import "gorm.io/gorm"

// RiskSettings holds per-user account and position limits.
type RiskSettings struct {
	gorm.Model
	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	AccountSize           float64 `json:"account_size"`
	MaxDailyLoss          float64 `json:"max_daily_loss"`
	MaxDailyLossPercent   float64 `json:"max_daily_loss_percent"`
	MaxPositionSize       float64 `json:"max_position_size"`
	MaxPositionPercent    float64 `json:"max_position_percent"`
	DefaultRiskPerTrade   float64 `json:"default_risk_per_trade"`
	RiskPercentPerTrade   float64 `json:"risk_percent_per_trade"`
	MaxOpenPositions      int     `json:"max_open_positions"`
	MaxSharesPerTrade     float64 `json:"max_shares_per_trade"`
	MaxOrderValue         float64 `json:"max_order_value"`
	DailyLossLimitEnabled bool    `json:"daily_loss_limit_enabled"`
	PositionLimitEnabled  bool    `json:"position_limit_enabled"`
}

// DefaultRiskSettings returns the settings a new user starts with.
func DefaultRiskSettings(userID uint) RiskSettings {
	return RiskSettings{
		UserID:                userID,
		AccountSize:           10000,
		MaxDailyLoss:          500,
		MaxDailyLossPercent:   5,
		MaxPositionSize:       5000,
		MaxPositionPercent:    50,
		DefaultRiskPerTrade:   100,
		RiskPercentPerTrade:   1,
		MaxOpenPositions:      5,
		MaxSharesPerTrade:     10000,
		MaxOrderValue:         25000,
		DailyLossLimitEnabled: true,
		PositionLimitEnabled:  true,
	}
}
