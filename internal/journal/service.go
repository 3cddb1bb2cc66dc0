// Package journal implements the trade journal use cases on top of the trade
// store and the statistics engine.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trade-journal/internal/config"
	"trade-journal/internal/importer"
	"trade-journal/internal/models"
	"trade-journal/internal/tradestore"

	"go.uber.org/zap"
)

// ErrInvalidInput marks a request the caller must fix.
var ErrInvalidInput = errors.New("invalid input")

// Service is the journal application service.
type Service struct {
	store     tradestore.Repository
	parser    *importer.Parser
	logger    *zap.Logger
	metrics   *Metrics
	maxErrors int
	now       func() time.Time
}

// NewService wires a journal service. metrics may be nil.
func NewService(store tradestore.Repository, parser *importer.Parser, cfg config.Import, logger *zap.Logger, metrics *Metrics) *Service {
	maxErrors := cfg.MaxErrors
	if maxErrors <= 0 {
		maxErrors = 10
	}
	return &Service{
		store:     store,
		parser:    parser,
		logger:    logger.Named("journal"),
		metrics:   metrics,
		maxErrors: maxErrors,
		now:       time.Now,
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// TradeInput is the body of a create request.
type TradeInput struct {
	Date        string        `json:"date" binding:"required"`
	Ticker      string        `json:"ticker" binding:"required,ticker"`
	Side        models.Side   `json:"side" binding:"required,oneof=long short"`
	EntryTime   *models.Clock `json:"entry_time"`
	ExitTime    *models.Clock `json:"exit_time"`
	EntryPrice  float64       `json:"entry_price" binding:"gt=0"`
	ExitPrice   float64       `json:"exit_price" binding:"gt=0"`
	Shares      float64       `json:"shares" binding:"gt=0"`
	PnL         float64       `json:"pnl"`
	PnLPercent  *float64      `json:"pnl_percent"`
	Commissions float64       `json:"commissions" binding:"gte=0"`
	HighOfDay   *float64      `json:"high_of_day"`
	LowOfDay    *float64      `json:"low_of_day"`
	Notes       string        `json:"notes"`
	Setup       string        `json:"setup" binding:"max=100"`
	TagIDs      []uint        `json:"tag_ids"`
}

// TradeUpdate is a partial update; nil fields are left unchanged.
type TradeUpdate struct {
	Date        *string       `json:"date"`
	Ticker      *string       `json:"ticker" binding:"omitempty,ticker"`
	Side        *models.Side  `json:"side" binding:"omitempty,oneof=long short"`
	EntryTime   *models.Clock `json:"entry_time"`
	ExitTime    *models.Clock `json:"exit_time"`
	EntryPrice  *float64      `json:"entry_price" binding:"omitempty,gt=0"`
	ExitPrice   *float64      `json:"exit_price" binding:"omitempty,gt=0"`
	Shares      *float64      `json:"shares" binding:"omitempty,gt=0"`
	PnL         *float64      `json:"pnl"`
	PnLPercent  *float64      `json:"pnl_percent"`
	Commissions *float64      `json:"commissions" binding:"omitempty,gte=0"`
	HighOfDay   *float64      `json:"high_of_day"`
	LowOfDay    *float64      `json:"low_of_day"`
	Notes       *string       `json:"notes"`
	Setup       *string       `json:"setup" binding:"omitempty,max=100"`
	TagIDs      []uint        `json:"tag_ids"`
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalid("date must be YYYY-MM-DD, got %q", s)
	}
	return d, nil
}

func (s *Service) ListTrades(ctx context.Context, f tradestore.Filter) ([]models.Trade, error) {
	return s.store.List(ctx, f)
}

func (s *Service) GetTrade(ctx context.Context, userID, id uint) (*models.Trade, error) {
	return s.store.Get(ctx, userID, id)
}

// CreateTrade stores a manually entered trade. net_pnl and the holding time
// are derived.
func (s *Service) CreateTrade(ctx context.Context, userID uint, in TradeInput) (*models.Trade, error) {
	date, err := parseDate(in.Date)
	if err != nil {
		return nil, err
	}
	t := &models.Trade{
		UserID:      userID,
		Date:        date,
		Ticker:      strings.ToUpper(strings.TrimSpace(in.Ticker)),
		Side:        in.Side,
		EntryTime:   in.EntryTime,
		ExitTime:    in.ExitTime,
		EntryPrice:  in.EntryPrice,
		ExitPrice:   in.ExitPrice,
		Shares:      in.Shares,
		PnL:         in.PnL,
		PnLPercent:  in.PnLPercent,
		Commissions: in.Commissions,
		HighOfDay:   in.HighOfDay,
		LowOfDay:    in.LowOfDay,
		Notes:       in.Notes,
		Setup:       in.Setup,
	}
	t.RecomputeNetPnL()
	t.RecomputeDuration()

	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	if len(in.TagIDs) > 0 {
		if err := s.store.SetTradeTags(ctx, userID, t.ID, in.TagIDs); err != nil {
			return nil, err
		}
		return s.store.Get(ctx, userID, t.ID)
	}
	return t, nil
}

// UpdateTrade applies a partial update. net_pnl follows pnl and commissions;
// the holding time follows entry and exit times.
func (s *Service) UpdateTrade(ctx context.Context, userID, id uint, in TradeUpdate) (*models.Trade, error) {
	t, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Date != nil {
		if t.Date, err = parseDate(*in.Date); err != nil {
			return nil, err
		}
	}
	if in.Ticker != nil && *in.Ticker != "" {
		t.Ticker = strings.ToUpper(strings.TrimSpace(*in.Ticker))
	}
	if in.Side != nil {
		t.Side = *in.Side
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat(&t.EntryPrice, in.EntryPrice)
	setFloat(&t.ExitPrice, in.ExitPrice)
	setFloat(&t.Shares, in.Shares)
	setFloat(&t.PnL, in.PnL)
	setFloat(&t.Commissions, in.Commissions)
	if in.PnLPercent != nil {
		t.PnLPercent = in.PnLPercent
	}
	if in.HighOfDay != nil {
		t.HighOfDay = in.HighOfDay
	}
	if in.LowOfDay != nil {
		t.LowOfDay = in.LowOfDay
	}
	if in.Notes != nil {
		t.Notes = *in.Notes
	}
	if in.Setup != nil {
		t.Setup = *in.Setup
	}
	if in.PnL != nil || in.Commissions != nil {
		t.RecomputeNetPnL()
	}
	if in.EntryTime != nil || in.ExitTime != nil {
		if in.EntryTime != nil {
			t.EntryTime = in.EntryTime
		}
		if in.ExitTime != nil {
			t.ExitTime = in.ExitTime
		}
		t.RecomputeDuration()
	}

	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}
	if in.TagIDs != nil {
		if err := s.store.SetTradeTags(ctx, userID, id, in.TagIDs); err != nil {
			return nil, err
		}
	}
	return s.store.Get(ctx, userID, id)
}

func (s *Service) DeleteTrade(ctx context.Context, userID, id uint) error {
	return s.store.Delete(ctx, userID, id)
}

func (s *Service) DeleteAllTrades(ctx context.Context, userID uint) (int64, error) {
	n, err := s.store.DeleteAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Deleted all trades", zap.Uint("user_id", userID), zap.Int64("count", n))
	return n, nil
}

// RecalculateDurations rederives the holding time of every trade that has
// both times and reports how many changed.
func (s *Service) RecalculateDurations(ctx context.Context, userID uint) (int, error) {
	trades, err := s.store.All(ctx, tradestore.Filter{UserID: userID, Order: tradestore.OrderChronological})
	if err != nil {
		return 0, err
	}
	updated := 0
	for i := range trades {
		t := &trades[i]
		before := t.DurationSeconds
		t.RecomputeDuration()
		if sameDuration(before, t.DurationSeconds) {
			continue
		}
		if err := s.store.Update(ctx, t); err != nil {
			return updated, fmt.Errorf("failed to update duration of trade %d: %w", t.ID, err)
		}
		updated++
	}
	return updated, nil
}

func sameDuration(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
