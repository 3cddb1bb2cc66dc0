// Package risk sizes positions against a user's risk settings.
package risk

import (
	"errors"
	"math"

	"trade-journal/internal/models"

	"github.com/shopspring/decimal"
)

// ErrZeroRisk is returned when entry and stop are the same price.
var ErrZeroRisk = errors.New("entry and stop price cannot be the same")

// ErrInvalidPrice is returned for non-positive entry prices.
var ErrInvalidPrice = errors.New("entry price must be positive")

// Limits echoes the settings that capped the calculation.
type Limits struct {
	MaxSharesPerTrade float64 `json:"max_shares_per_trade"`
	MaxPosition       float64 `json:"max_position"`
	MaxOrder          float64 `json:"max_order"`
}

// Position is the result of a sizing calculation.
type Position struct {
	RecommendedShares int64   `json:"recommended_shares"`
	CalculatedShares  int64   `json:"calculated_shares"`
	PositionValue     float64 `json:"position_value"`
	RiskAmount        float64 `json:"risk_amount"`
	RiskPercent       float64 `json:"risk_percent"`
	EntryPrice        float64 `json:"entry_price"`
	StopPrice         float64 `json:"stop_price"`
	RiskPerShare      float64 `json:"risk_per_share"`
	LimitsApplied     Limits  `json:"limits_applied"`
}

// BudgetFor returns the dollar amount to risk on a trade. A positive
// override wins, then the fixed default, then a percentage of the account.
func BudgetFor(s models.RiskSettings, override float64) float64 {
	switch {
	case override > 0:
		return override
	case s.DefaultRiskPerTrade > 0:
		return s.DefaultRiskPerTrade
	default:
		return s.AccountSize * s.RiskPercentPerTrade / 100
	}
}

// PositionSize computes how many shares to buy so that a stop-out loses at
// most the risk budget, capped by the share, position and order limits.
func PositionSize(s models.RiskSettings, entry, stop, override float64) (Position, error) {
	if entry <= 0 {
		return Position{}, ErrInvalidPrice
	}
	perShare := math.Abs(entry - stop)
	if perShare == 0 {
		return Position{}, ErrZeroRisk
	}

	calculated := int64(math.Floor(BudgetFor(s, override) / perShare))
	shares := calculated
	for _, limit := range []float64{
		s.MaxSharesPerTrade,
		s.MaxPositionSize / entry,
		s.MaxOrderValue / entry,
	} {
		if limit <= 0 {
			continue
		}
		if capped := int64(math.Floor(limit)); capped < shares {
			shares = capped
		}
	}
	if shares < 0 {
		shares = 0
	}

	value := float64(shares) * entry
	risked := float64(shares) * perShare
	pct := 0.0
	if s.AccountSize > 0 {
		pct = risked / s.AccountSize * 100
	}

	return Position{
		RecommendedShares: shares,
		CalculatedShares:  calculated,
		PositionValue:     roundTo(value, 2),
		RiskAmount:        roundTo(risked, 2),
		RiskPercent:       roundTo(pct, 2),
		EntryPrice:        entry,
		StopPrice:         stop,
		RiskPerShare:      roundTo(perShare, 4),
		LimitsApplied: Limits{
			MaxSharesPerTrade: s.MaxSharesPerTrade,
			MaxPosition:       s.MaxPositionSize,
			MaxOrder:          s.MaxOrderValue,
		},
	}, nil
}

func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
