package gormrepository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tweetmarkets/internal/models"
	"tweetmarkets/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateMarket(ctx context.Context, item *models.Market) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetMarketByID(ctx context.Context, id string) (*models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Market
	err := s.db.WithContext(ctx).
		Preload("TweetDetail").
		Where("id = ?", id).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit := normalizeLimit(params.Limit, 10)
	offset := normalizeOffset(params.Offset)
	var items []models.Market
	err := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Preload("TweetDetail").
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountMarkets(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Market{}).Count(&count).Error
	return count, err
}

func (s *Store) UpdateMarket(ctx context.Context, item *models.Market) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"tweet_id":            item.TweetID,
			"collateral_amount":   item.CollateralAmount,
			"yes_shares":          item.YesShares,
			"no_shares":           item.NoShares,
			"chance":              item.Chance,
			"settlement_deadline": item.SettlementDeadline,
		}).Error
}

func (s *Store) DeleteMarket(ctx context.Context, id string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Market{})
	return res.RowsAffected, res.Error
}

// UpsertTweetDetail inserts the detail row or, when the market already has
// one, overwrites it in place. market_id is the arbiter so a refresh that
// points the market at a different tweet still replaces the existing row.
func (s *Store) UpsertTweetDetail(ctx context.Context, item *models.TweetDetail) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "market_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"id",
			"text",
			"tweet_created_at",
			"author_avatar_url",
			"raw_json",
			"fetched_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetTweetDetailByMarketID(ctx context.Context, marketID string) (*models.TweetDetail, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.TweetDetail
	err := s.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListMarketsMissingTweetDetail(ctx context.Context, limit int) ([]models.Market, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Market{}).
		Joins("LEFT JOIN tweet_details ON tweet_details.market_id = markets.id").
		Where("markets.tweet_id IS NOT NULL").
		Where("markets.tweet_id <> ''").
		Where("tweet_details.market_id IS NULL").
		Order("markets.created_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var items []models.Market
	err := query.Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
