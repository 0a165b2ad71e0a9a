package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tweetmarkets/internal/client/twitter"
	"tweetmarkets/internal/models"
)

type stubFetcher struct {
	tweets map[string]*twitter.Tweet
	errs   map[string]error
	calls  int
}

func (f *stubFetcher) FetchTweet(ctx context.Context, id string) (*twitter.Tweet, error) {
	f.calls++
	if err, ok := f.errs[id]; ok {
		return nil, err
	}
	if tw, ok := f.tweets[id]; ok {
		return tw, nil
	}
	return nil, twitter.ErrNotFound
}

type blockingFetcher struct{}

func (blockingFetcher) FetchTweet(ctx context.Context, id string) (*twitter.Tweet, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func strPtr(s string) *string { return &s }

func testMarket(id, tweetID string) *models.Market {
	m := &models.Market{ID: id}
	if tweetID != "" {
		m.TweetID = strPtr(tweetID)
	}
	return m
}

func testTweet(id, text string) *twitter.Tweet {
	return &twitter.Tweet{
		ID:              id,
		Text:            text,
		CreatedAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		AuthorAvatarURL: "http://x/a.png",
		Raw:             []byte(`{}`),
	}
}

func TestAttachOnCreate(t *testing.T) {
	repo := newStubRepo()
	fetcher := &stubFetcher{tweets: map[string]*twitter.Tweet{"t1": testTweet("t1", "hello")}}
	e := &Enricher{Repo: repo, Tweets: fetcher}

	m := testMarket("m1", "t1")
	repo.CreateMarket(context.Background(), m)
	e.AttachOnCreate(context.Background(), m)

	detail, _ := repo.GetTweetDetailByMarketID(context.Background(), "m1")
	if detail == nil {
		t.Fatalf("detail not attached")
	}
	if detail.Text != "hello" {
		t.Fatalf("text = %q", detail.Text)
	}
	if detail.ID != "t1" || detail.MarketID != "m1" {
		t.Fatalf("detail keys = %q/%q", detail.ID, detail.MarketID)
	}
}

func TestAttachOnCreateNoTweetID(t *testing.T) {
	repo := newStubRepo()
	fetcher := &stubFetcher{}
	e := &Enricher{Repo: repo, Tweets: fetcher}

	m := testMarket("m1", "")
	repo.CreateMarket(context.Background(), m)
	e.AttachOnCreate(context.Background(), m)

	if fetcher.calls != 0 {
		t.Fatalf("fetcher called %d times for market without tweet", fetcher.calls)
	}
}

func TestAttachOnCreateLookupFailureIsSoft(t *testing.T) {
	repo := newStubRepo()
	fetcher := &stubFetcher{errs: map[string]error{"t1": errors.New("network down")}}
	e := &Enricher{Repo: repo, Tweets: fetcher}

	m := testMarket("m1", "t1")
	repo.CreateMarket(context.Background(), m)
	e.AttachOnCreate(context.Background(), m)

	if detail, _ := repo.GetTweetDetailByMarketID(context.Background(), "m1"); detail != nil {
		t.Fatalf("detail attached despite lookup failure")
	}
}

func TestAttachOnCreateTwiceKeepsOneRow(t *testing.T) {
	repo := newStubRepo()
	fetcher := &stubFetcher{tweets: map[string]*twitter.Tweet{"t1": testTweet("t1", "hello")}}
	e := &Enricher{Repo: repo, Tweets: fetcher}

	m := testMarket("m1", "t1")
	repo.CreateMarket(context.Background(), m)
	e.AttachOnCreate(context.Background(), m)
	e.AttachOnCreate(context.Background(), m)

	if n := len(repo.details); n != 1 {
		t.Fatalf("detail rows = %d, want 1", n)
	}
}

func TestAttachOnCreateTimeout(t *testing.T) {
	repo := newStubRepo()
	e := &Enricher{Repo: repo, Tweets: blockingFetcher{}, LookupTimeout: 10 * time.Millisecond}

	m := testMarket("m1", "t1")
	repo.CreateMarket(context.Background(), m)

	done := make(chan struct{})
	go func() {
		e.AttachOnCreate(context.Background(), m)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("AttachOnCreate did not time out")
	}
	if detail, _ := repo.GetTweetDetailByMarketID(context.Background(), "m1"); detail != nil {
		t.Fatalf("detail attached despite timeout")
	}
}

func TestRefreshOneMarketNotFound(t *testing.T) {
	e := &Enricher{Repo: newStubRepo(), Tweets: &stubFetcher{}}
	if _, err := e.RefreshOne(context.Background(), "missing"); !errors.Is(err, ErrMarketNotFound) {
		t.Fatalf("err = %v, want ErrMarketNotFound", err)
	}
}

func TestRefreshOneNoTweetID(t *testing.T) {
	repo := newStubRepo()
	repo.CreateMarket(context.Background(), testMarket("m1", ""))
	e := &Enricher{Repo: repo, Tweets: &stubFetcher{}}
	if _, err := e.RefreshOne(context.Background(), "m1"); !errors.Is(err, ErrNoTweetID) {
		t.Fatalf("err = %v, want ErrNoTweetID", err)
	}
}

func TestRefreshOneTweetNotFoundIsHard(t *testing.T) {
	repo := newStubRepo()
	repo.CreateMarket(context.Background(), testMarket("m1", "gone"))
	e := &Enricher{Repo: repo, Tweets: &stubFetcher{}}
	if _, err := e.RefreshOne(context.Background(), "m1"); !errors.Is(err, twitter.ErrNotFound) {
		t.Fatalf("err = %v, want twitter.ErrNotFound", err)
	}
}

func TestRefreshOneIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	repo.CreateMarket(context.Background(), testMarket("m1", "t1"))
	fetcher := &stubFetcher{tweets: map[string]*twitter.Tweet{"t1": testTweet("t1", "first")}}
	e := &Enricher{Repo: repo, Tweets: fetcher}

	if _, err := e.RefreshOne(context.Background(), "m1"); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	fetcher.tweets["t1"] = testTweet("t1", "second")
	detail, err := e.RefreshOne(context.Background(), "m1")
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if len(repo.details) != 1 {
		t.Fatalf("detail rows = %d, want 1", len(repo.details))
	}
	if detail.Text != "second" {
		t.Fatalf("text = %q, want latest fetch", detail.Text)
	}
}

func TestRefreshAllMissingContinuesPastFailures(t *testing.T) {
	repo := newStubRepo()
	repo.CreateMarket(context.Background(), testMarket("m1", "t1"))
	repo.CreateMarket(context.Background(), testMarket("m2", "t2"))
	repo.CreateMarket(context.Background(), testMarket("m3", "t3"))
	repo.CreateMarket(context.Background(), testMarket("m4", "")) // never eligible
	fetcher := &stubFetcher{
		tweets: map[string]*twitter.Tweet{
			"t1": testTweet("t1", "one"),
			"t3": testTweet("t3", "three"),
		},
		errs: map[string]error{"t2": errors.New("rate limited")},
	}
	e := &Enricher{Repo: repo, Tweets: fetcher}

	result, err := e.RefreshAllMissing(context.Background())
	if err != nil {
		t.Fatalf("RefreshAllMissing: %v", err)
	}
	if result.Updated != 2 {
		t.Fatalf("updated = %d, want 2", result.Updated)
	}
	if len(result.MarketIDs) != 2 || result.MarketIDs[0] != "m1" || result.MarketIDs[1] != "m3" {
		t.Fatalf("market ids = %v", result.MarketIDs)
	}
}

func TestRefreshAllMissingFixedPoint(t *testing.T) {
	repo := newStubRepo()
	repo.CreateMarket(context.Background(), testMarket("m1", "t1"))
	repo.CreateMarket(context.Background(), testMarket("m2", "t2"))
	fetcher := &stubFetcher{tweets: map[string]*twitter.Tweet{
		"t1": testTweet("t1", "one"),
		"t2": testTweet("t2", "two"),
	}}
	e := &Enricher{Repo: repo, Tweets: fetcher}

	first, err := e.RefreshAllMissing(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Updated != 2 {
		t.Fatalf("first run updated = %d, want 2", first.Updated)
	}

	calls := fetcher.calls
	second, err := e.RefreshAllMissing(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Updated != 0 {
		t.Fatalf("second run updated = %d, want 0", second.Updated)
	}
	if fetcher.calls != calls {
		t.Fatalf("second run performed lookups for already-enriched markets")
	}
}

func TestRefreshAllMissingCoversEveryEligibleMarket(t *testing.T) {
	repo := newStubRepo()
	fetcher := &stubFetcher{tweets: map[string]*twitter.Tweet{}}
	for i := 0; i < 250; i++ {
		marketID := fmt.Sprintf("m%03d", i)
		tweetID := fmt.Sprintf("t%03d", i)
		repo.CreateMarket(context.Background(), testMarket(marketID, tweetID))
		fetcher.tweets[tweetID] = testTweet(tweetID, "text")
	}
	e := &Enricher{Repo: repo, Tweets: fetcher}

	result, err := e.RefreshAllMissing(context.Background())
	if err != nil {
		t.Fatalf("RefreshAllMissing: %v", err)
	}
	if result.Updated != 250 {
		t.Fatalf("updated = %d, want all 250 eligible markets in one run", result.Updated)
	}
	if len(repo.details) != 250 {
		t.Fatalf("detail rows = %d, want 250", len(repo.details))
	}
}

func TestRefreshAllMissingStoreErrorAborts(t *testing.T) {
	repo := newStubRepo()
	repo.failList = errors.New("db down")
	e := &Enricher{Repo: repo, Tweets: &stubFetcher{}}
	if _, err := e.RefreshAllMissing(context.Background()); err == nil {
		t.Fatalf("expected error when listing fails")
	}
}

func TestRefreshAllMissingFailedUpsertNotCounted(t *testing.T) {
	repo := newStubRepo()
	repo.CreateMarket(context.Background(), testMarket("m1", "t1"))
	repo.failUpsert = errors.New("constraint violation")
	fetcher := &stubFetcher{tweets: map[string]*twitter.Tweet{"t1": testTweet("t1", "one")}}
	e := &Enricher{Repo: repo, Tweets: fetcher}

	result, err := e.RefreshAllMissing(context.Background())
	if err != nil {
		t.Fatalf("RefreshAllMissing: %v", err)
	}
	if result.Updated != 0 {
		t.Fatalf("updated = %d, want 0", result.Updated)
	}
}
