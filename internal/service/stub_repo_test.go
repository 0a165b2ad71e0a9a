package service

import (
	"context"
	"errors"
	"sort"

	"tweetmarkets/internal/models"
	"tweetmarkets/internal/repository"
)

// stubRepo is a test-only in-memory implementation of
// repository.MarketRepository.
type stubRepo struct {
	markets map[string]*models.Market
	details map[string]*models.TweetDetail // keyed by market id

	failList   error
	failUpsert error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		markets: map[string]*models.Market{},
		details: map[string]*models.TweetDetail{},
	}
}

var _ repository.MarketRepository = (*stubRepo)(nil)

func (s *stubRepo) CreateMarket(ctx context.Context, item *models.Market) error {
	if _, ok := s.markets[item.ID]; ok {
		return errors.New("duplicate market id")
	}
	cp := *item
	s.markets[item.ID] = &cp
	return nil
}

func (s *stubRepo) GetMarketByID(ctx context.Context, id string) (*models.Market, error) {
	m, ok := s.markets[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	if d, ok := s.details[id]; ok {
		dc := *d
		cp.TweetDetail = &dc
	}
	return &cp, nil
}

func (s *stubRepo) ListMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.Market, error) {
	ids := make([]string, 0, len(s.markets))
	for id := range s.markets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.Market, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.markets[id])
	}
	if params.Offset >= len(out) {
		return []models.Market{}, nil
	}
	out = out[params.Offset:]
	if params.Limit > 0 && params.Limit < len(out) {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *stubRepo) CountMarkets(ctx context.Context) (int64, error) {
	return int64(len(s.markets)), nil
}

func (s *stubRepo) UpdateMarket(ctx context.Context, item *models.Market) error {
	if _, ok := s.markets[item.ID]; !ok {
		return errors.New("market missing")
	}
	cp := *item
	s.markets[item.ID] = &cp
	return nil
}

func (s *stubRepo) DeleteMarket(ctx context.Context, id string) (int64, error) {
	if _, ok := s.markets[id]; !ok {
		return 0, nil
	}
	delete(s.markets, id)
	delete(s.details, id)
	return 1, nil
}

func (s *stubRepo) UpsertTweetDetail(ctx context.Context, item *models.TweetDetail) error {
	if s.failUpsert != nil {
		return s.failUpsert
	}
	cp := *item
	s.details[item.MarketID] = &cp
	return nil
}

func (s *stubRepo) GetTweetDetailByMarketID(ctx context.Context, marketID string) (*models.TweetDetail, error) {
	d, ok := s.details[marketID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

// ListMarketsMissingTweetDetail matches the repository contract: a
// limit <= 0 returns every eligible market.
func (s *stubRepo) ListMarketsMissingTweetDetail(ctx context.Context, limit int) ([]models.Market, error) {
	if s.failList != nil {
		return nil, s.failList
	}
	ids := make([]string, 0, len(s.markets))
	for id, m := range s.markets {
		if !m.HasTweet() {
			continue
		}
		if _, ok := s.details[id]; ok {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.Market, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.markets[id])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
