package repository

import (
	"context"

	"tweetmarkets/internal/models"
)

type ListMarketsParams struct {
	Limit  int
	Offset int
}

// MarketRepository is the persistence contract for markets and their
// cached tweet details.
type MarketRepository interface {
	CreateMarket(ctx context.Context, item *models.Market) error
	GetMarketByID(ctx context.Context, id string) (*models.Market, error)
	ListMarkets(ctx context.Context, params ListMarketsParams) ([]models.Market, error)
	CountMarkets(ctx context.Context) (int64, error)
	UpdateMarket(ctx context.Context, item *models.Market) error
	DeleteMarket(ctx context.Context, id string) (int64, error)

	UpsertTweetDetail(ctx context.Context, item *models.TweetDetail) error
	GetTweetDetailByMarketID(ctx context.Context, marketID string) (*models.TweetDetail, error)
	// ListMarketsMissingTweetDetail returns markets that reference a tweet
	// but have no cached detail row. A limit <= 0 means no limit: the bulk
	// refresh relies on seeing every eligible market in one pass.
	ListMarketsMissingTweetDetail(ctx context.Context, limit int) ([]models.Market, error)
}
