// Package tradestore persists trades, tags, risk settings and scanned gaps
// with gorm.
package tradestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trade-journal/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateTag is returned when a user already has a tag with the name.
	ErrDuplicateTag = errors.New("tag already exists")
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
	batchSize    = 200
)

// Order of a trade listing.
type Order int

const (
	OrderNewest Order = iota
	OrderChronological
)

// Filter selects a user's trades.
type Filter struct {
	UserID uint
	Ticker string
	Side   models.Side
	Start  *time.Time
	End    *time.Time
	Skip   int
	Limit  int
	Order  Order
}

// Repository is the persistence surface the services depend on.
type Repository interface {
	List(ctx context.Context, f Filter) ([]models.Trade, error)
	All(ctx context.Context, f Filter) ([]models.Trade, error)
	Get(ctx context.Context, userID, id uint) (*models.Trade, error)
	Create(ctx context.Context, t *models.Trade) error
	CreateBatch(ctx context.Context, trades []models.Trade) error
	Update(ctx context.Context, t *models.Trade) error
	Delete(ctx context.Context, userID, id uint) error
	DeleteAll(ctx context.Context, userID uint) (int64, error)

	ListTags(ctx context.Context, userID uint) ([]models.Tag, error)
	CreateTag(ctx context.Context, tag *models.Tag) error
	DeleteTag(ctx context.Context, userID, id uint) error
	SetTradeTags(ctx context.Context, userID, tradeID uint, tagIDs []uint) error

	RiskSettings(ctx context.Context, userID uint) (*models.RiskSettings, error)
	SaveRiskSettings(ctx context.Context, s *models.RiskSettings) error

	UpsertGaps(ctx context.Context, gaps []models.Gap) error
	ListGaps(ctx context.Context, ticker string, minAbsGap float64, limit int) ([]models.Gap, error)
}

// Store implements Repository on a gorm connection.
type Store struct {
	db *gorm.DB
}

// New creates a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ Repository = (*Store)(nil)

func (s *Store) scoped(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Trade{}).Where("user_id = ?", f.UserID)
	if f.Ticker != "" {
		q = q.Where("ticker = ?", strings.ToUpper(strings.TrimSpace(f.Ticker)))
	}
	if f.Side != "" {
		q = q.Where("side = ?", f.Side)
	}
	if f.Start != nil {
		q = q.Where("date >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("date <= ?", *f.End)
	}
	if f.Order == OrderChronological {
		return q.Order("date asc").Order("entry_time asc").Order("id asc")
	}
	return q.Order("date desc").Order("entry_time desc").Order("id desc")
}

// List returns one page of trades, newest first unless the filter says
// otherwise.
func (s *Store) List(ctx context.Context, f Filter) ([]models.Trade, error) {
	limit := f.Limit
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	skip := f.Skip
	if skip < 0 {
		skip = 0
	}

	var trades []models.Trade
	if err := s.scoped(ctx, f).Preload("Tags").Offset(skip).Limit(limit).Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	return trades, nil
}

// All returns every trade matching the filter, ignoring paging.
func (s *Store) All(ctx context.Context, f Filter) ([]models.Trade, error) {
	var trades []models.Trade
	if err := s.scoped(ctx, f).Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	return trades, nil
}

func (s *Store) Get(ctx context.Context, userID, id uint) (*models.Trade, error) {
	var t models.Trade
	err := s.db.WithContext(ctx).Preload("Tags").Where("user_id = ?", userID).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade %d: %w", id, err)
	}
	return &t, nil
}

func (s *Store) Create(ctx context.Context, t *models.Trade) error {
	if err := s.db.WithContext(ctx).Omit("Tags").Create(t).Error; err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	return nil
}

// CreateBatch inserts trades in a single transaction.
func (s *Store) CreateBatch(ctx context.Context, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Omit("Tags").CreateInBatches(&trades, batchSize).Error; err != nil {
		return fmt.Errorf("failed to insert %d trades: %w", len(trades), err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, t *models.Trade) error {
	res := s.db.WithContext(ctx).Model(t).
		Where("user_id = ?", t.UserID).
		Select("*").Omit("Tags", "CreatedAt", "DeletedAt").
		Updates(t)
	if res.Error != nil {
		return fmt.Errorf("failed to update trade %d: %w", t.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Trade{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete trade %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every trade of a user and reports how many went.
func (s *Store) DeleteAll(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Trade{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete trades: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) ListTags(ctx context.Context, userID uint) ([]models.Tag, error) {
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (s *Store) CreateTag(ctx context.Context, tag *models.Tag) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Tag{}).
		Where("user_id = ? AND name = ?", tag.UserID, tag.Name).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to check tag: %w", err)
	}
	if n > 0 {
		return ErrDuplicateTag
	}
	if tag.Color == "" {
		tag.Color = models.DefaultTagColor
	}
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// DeleteTag hard-deletes so the name can be reused.
func (s *Store) DeleteTag(ctx context.Context, userID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		err := tx.Where("user_id = ?", userID).First(&tag, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get tag %d: %w", id, err)
		}
		if err := tx.Exec("DELETE FROM trade_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
			return fmt.Errorf("failed to detach tag %d: %w", id, err)
		}
		if err := tx.Unscoped().Delete(&tag).Error; err != nil {
			return fmt.Errorf("failed to delete tag %d: %w", id, err)
		}
		return nil
	})
}

// SetTradeTags replaces a trade's tags. Tag IDs not owned by the user are
// ignored.
func (s *Store) SetTradeTags(ctx context.Context, userID, tradeID uint, tagIDs []uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Trade
		err := tx.Where("user_id = ?", userID).First(&t, tradeID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get trade %d: %w", tradeID, err)
		}

		tags := []models.Tag{}
		if len(tagIDs) > 0 {
			if err := tx.Where("user_id = ? AND id IN ?", userID, tagIDs).Find(&tags).Error; err != nil {
				return fmt.Errorf("failed to load tags: %w", err)
			}
		}
		if err := tx.Model(&t).Association("Tags").Replace(tags); err != nil {
			return fmt.Errorf("failed to set tags on trade %d: %w", tradeID, err)
		}
		return nil
	})
}

// RiskSettings returns the user's settings, creating the defaults on first
// access.
func (s *Store) RiskSettings(ctx context.Context, userID uint) (*models.RiskSettings, error) {
	var rs models.RiskSettings
	err := s.db.WithContext(ctx).
		Where(models.RiskSettings{UserID: userID}).
		Attrs(models.DefaultRiskSettings(userID)).
		FirstOrCreate(&rs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load risk settings: %w", err)
	}
	return &rs, nil
}

func (s *Store) SaveRiskSettings(ctx context.Context, rs *models.RiskSettings) error {
	if err := s.db.WithContext(ctx).Save(rs).Error; err != nil {
		return fmt.Errorf("failed to save risk settings: %w", err)
	}
	return nil
}

// UpsertGaps inserts gaps, overwriting the measurements of an existing
// ticker/date row.
func (s *Store) UpsertGaps(ctx context.Context, gaps []models.Gap) error {
	if len(gaps) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ticker"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at", "gap_pct", "direction", "open", "high", "low", "close", "prev_close", "volume", "range_pct",
		}),
	}).CreateInBatches(&gaps, batchSize).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %d gaps: %w", len(gaps), err)
	}
	return nil
}

// ListGaps returns stored gaps for a ticker, newest first, whose absolute
// size is at least minAbsGap.
func (s *Store) ListGaps(ctx context.Context, ticker string, minAbsGap float64, limit int) ([]models.Gap, error) {
	q := s.db.WithContext(ctx).
		Where("ticker = ?", strings.ToUpper(ticker)).
		Where("gap_pct >= ? OR gap_pct <= ?", minAbsGap, -minAbsGap).
		Order("date desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var gaps []models.Gap
	if err := q.Find(&gaps).Error; err != nil {
		return nil, fmt.Errorf("failed to list gaps for %s: %w", ticker, err)
	}
	return gaps, nil
}
