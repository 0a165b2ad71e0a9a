package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"tweetmarkets/internal/client/twitter"
	"tweetmarkets/internal/models"
	"tweetmarkets/internal/repository"
)

var (
	ErrMarketNotFound = errors.New("market not found")
	ErrNoTweetID      = errors.New("market has no tweet id")
)

// TweetFetcher is the slice of the lookup client the enricher needs.
type TweetFetcher interface {
	FetchTweet(ctx context.Context, id string) (*twitter.Tweet, error)
}

// Enricher populates tweet details for markets. Lookup failures are soft on
// the create and bulk paths (logged, caller unaffected) and hard on the
// single-market refresh path.
type Enricher struct {
	Repo          repository.MarketRepository
	Tweets        TweetFetcher
	Logger        *zap.Logger
	LookupTimeout time.Duration
}

type RefreshResult struct {
	Updated   int      `json:"updated"`
	MarketIDs []string `json:"marketIds"`
}

// AttachOnCreate fetches and attaches tweet details for a freshly created
// market. Best-effort: any failure is logged and swallowed so the create
// that triggered it still succeeds.
func (e *Enricher) AttachOnCreate(ctx context.Context, market *models.Market) {
	if market == nil || !market.HasTweet() {
		return
	}
	if err := e.enrich(ctx, market.ID, *market.TweetID); err != nil {
		e.warn("attach tweet details on create failed",
			zap.String("market_id", market.ID),
			zap.String("tweet_id", *market.TweetID),
			zap.Error(err),
		)
	}
}

// RefreshOne re-fetches tweet details for a single market and upserts them.
// Unlike the other entry points, lookup failure here is an error: the caller
// asked for exactly this refresh.
func (e *Enricher) RefreshOne(ctx context.Context, marketID string) (*models.TweetDetail, error) {
	market, err := e.Repo.GetMarketByID(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("load market %s: %w", marketID, err)
	}
	if market == nil {
		return nil, ErrMarketNotFound
	}
	if !market.HasTweet() {
		return nil, ErrNoTweetID
	}
	if err := e.enrich(ctx, market.ID, *market.TweetID); err != nil {
		return nil, err
	}
	return e.Repo.GetTweetDetailByMarketID(ctx, market.ID)
}

// RefreshAllMissing walks every market that references a tweet but has no
// cached detail yet and enriches them one at a time. A failing market is
// logged and skipped; the batch never aborts on a per-item error, so
// repeated runs converge once every market is enriched.
func (e *Enricher) RefreshAllMissing(ctx context.Context) (RefreshResult, error) {
	markets, err := e.Repo.ListMarketsMissingTweetDetail(ctx, 0)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("list markets missing tweet details: %w", err)
	}

	result := RefreshResult{MarketIDs: []string{}}
	for i := range markets {
		market := &markets[i]
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := e.enrich(ctx, market.ID, *market.TweetID); err != nil {
			e.warn("bulk tweet refresh failed for market",
				zap.String("market_id", market.ID),
				zap.String("tweet_id", *market.TweetID),
				zap.Error(err),
			)
			continue
		}
		result.Updated++
		result.MarketIDs = append(result.MarketIDs, market.ID)
	}
	return result, nil
}

// enrich is the shared fetch-then-upsert step. The upsert keeps it
// idempotent: a second call for the same market overwrites the existing
// row instead of tripping the unique constraint.
func (e *Enricher) enrich(ctx context.Context, marketID, tweetID string) error {
	lookupCtx := ctx
	if e.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, e.LookupTimeout)
		defer cancel()
	}

	tweet, err := e.Tweets.FetchTweet(lookupCtx, tweetID)
	if err != nil {
		return fmt.Errorf("fetch tweet %s: %w", tweetID, err)
	}

	detail := &models.TweetDetail{
		ID:              tweet.ID,
		MarketID:        marketID,
		Text:            tweet.Text,
		TweetCreatedAt:  tweet.CreatedAt,
		AuthorAvatarURL: tweet.AuthorAvatarURL,
		RawJSON:         datatypes.JSON(tweet.Raw),
		FetchedAt:       time.Now().UTC(),
	}
	if err := e.Repo.UpsertTweetDetail(ctx, detail); err != nil {
		return fmt.Errorf("upsert tweet detail for market %s: %w", marketID, err)
	}
	return nil
}

func (e *Enricher) warn(msg string, fields ...zap.Field) {
	if e.Logger != nil {
		e.Logger.Warn(msg, fields...)
	}
}
