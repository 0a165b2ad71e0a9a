package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the lookup API reports no such tweet.
var ErrNotFound = errors.New("tweet not found")

type Client struct {
	host        string
	bearerToken string
	httpClient  *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

// Tweet is the subset of the lookup response the service caches.
type Tweet struct {
	ID              string
	Text            string
	CreatedAt       time.Time
	AuthorAvatarURL string
	Raw             json.RawMessage
}

func NewClient(httpClient *http.Client, host, bearerToken string) *Client {
	if host == "" {
		host = "https://api.twitterapi.io"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:        host,
		bearerToken: bearerToken,
		httpClient:  httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

type tweetPayload struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	Author    struct {
		AvatarURL string `json:"avatar_url"`
	} `json:"author"`
}

// FetchTweet looks up a single tweet by id. A tweet the API knows nothing
// about, or one with an empty body, is reported as ErrNotFound.
func (c *Client) FetchTweet(ctx context.Context, id string) (*Tweet, error) {
	if id == "" {
		return nil, fmt.Errorf("tweet id is required")
	}
	body, err := c.doRequest(ctx, "/tweets/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var payload tweetPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode tweet %s: %w", id, err)
	}
	if payload.Text == "" {
		return nil, ErrNotFound
	}

	createdAt, err := parseCreatedAt(payload.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for tweet %s: %w", id, err)
	}

	tweetID := payload.ID
	if tweetID == "" {
		tweetID = id
	}
	return &Tweet{
		ID:              tweetID,
		Text:            payload.Text,
		CreatedAt:       createdAt,
		AuthorAvatarURL: payload.Author.AvatarURL,
		Raw:             json.RawMessage(body),
	}, nil
}

// legacyTimeLayout is the pre-v2 Twitter timestamp format.
const legacyTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

func parseCreatedAt(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse(legacyTimeLayout, value)
}
