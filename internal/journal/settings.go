package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trade-journal/internal/models"
	"trade-journal/internal/risk"
)

// TagInput is the body of a tag create request.
type TagInput struct {
	Name  string `json:"name" binding:"required,max=50"`
	Color string `json:"color" binding:"omitempty,hexcolor"`
}

func (s *Service) ListTags(ctx context.Context, userID uint) ([]models.Tag, error) {
	return s.store.ListTags(ctx, userID)
}

func (s *Service) CreateTag(ctx context.Context, userID uint, in TagInput) (*models.Tag, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("tag name is required")
	}
	tag := &models.Tag{UserID: userID, Name: name, Color: in.Color}
	if err := s.store.CreateTag(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *Service) DeleteTag(ctx context.Context, userID, id uint) error {
	return s.store.DeleteTag(ctx, userID, id)
}

// RiskSettingsUpdate is a partial update of the risk settings.
type RiskSettingsUpdate struct {
	AccountSize           *float64 `json:"account_size" binding:"omitempty,gt=0"`
	MaxDailyLoss          *float64 `json:"max_daily_loss" binding:"omitempty,gte=0"`
	MaxDailyLossPercent   *float64 `json:"max_daily_loss_percent" binding:"omitempty,gte=0,lte=100"`
	MaxPositionSize       *float64 `json:"max_position_size" binding:"omitempty,gte=0"`
	MaxPositionPercent    *float64 `json:"max_position_percent" binding:"omitempty,gte=0,lte=100"`
	DefaultRiskPerTrade   *float64 `json:"default_risk_per_trade" binding:"omitempty,gte=0"`
	RiskPercentPerTrade   *float64 `json:"risk_percent_per_trade" binding:"omitempty,gte=0,lte=100"`
	MaxOpenPositions      *int     `json:"max_open_positions" binding:"omitempty,gte=0"`
	MaxSharesPerTrade     *float64 `json:"max_shares_per_trade" binding:"omitempty,gte=0"`
	MaxOrderValue         *float64 `json:"max_order_value" binding:"omitempty,gte=0"`
	DailyLossLimitEnabled *bool    `json:"daily_loss_limit_enabled"`
	PositionLimitEnabled  *bool    `json:"position_limit_enabled"`
}

func (s *Service) RiskSettings(ctx context.Context, userID uint) (*models.RiskSettings, error) {
	return s.store.RiskSettings(ctx, userID)
}

func (s *Service) UpdateRiskSettings(ctx context.Context, userID uint, in RiskSettingsUpdate) (*models.RiskSettings, error) {
	rs, err := s.store.RiskSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat(&rs.AccountSize, in.AccountSize)
	setFloat(&rs.MaxDailyLoss, in.MaxDailyLoss)
	setFloat(&rs.MaxDailyLossPercent, in.MaxDailyLossPercent)
	setFloat(&rs.MaxPositionSize, in.MaxPositionSize)
	setFloat(&rs.MaxPositionPercent, in.MaxPositionPercent)
	setFloat(&rs.DefaultRiskPerTrade, in.DefaultRiskPerTrade)
	setFloat(&rs.RiskPercentPerTrade, in.RiskPercentPerTrade)
	setFloat(&rs.MaxSharesPerTrade, in.MaxSharesPerTrade)
	setFloat(&rs.MaxOrderValue, in.MaxOrderValue)
	if in.MaxOpenPositions != nil {
		rs.MaxOpenPositions = *in.MaxOpenPositions
	}
	if in.DailyLossLimitEnabled != nil {
		rs.DailyLossLimitEnabled = *in.DailyLossLimitEnabled
	}
	if in.PositionLimitEnabled != nil {
		rs.PositionLimitEnabled = *in.PositionLimitEnabled
	}

	if err := s.store.SaveRiskSettings(ctx, rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// PositionSize sizes a position with the user's stored settings.
func (s *Service) PositionSize(ctx context.Context, userID uint, entry, stop, riskOverride float64) (risk.Position, error) {
	rs, err := s.store.RiskSettings(ctx, userID)
	if err != nil {
		return risk.Position{}, err
	}
	pos, err := risk.PositionSize(*rs, entry, stop, riskOverride)
	if errors.Is(err, risk.ErrZeroRisk) || errors.Is(err, risk.ErrInvalidPrice) {
		return risk.Position{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return pos, err
}
