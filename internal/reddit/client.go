package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/user/reddit-digest-bot/internal/config"
	"golang.org/x/time/rate"
)

var (
	// ErrMissingData indicates a well-formed JSON response that lacks the
	// listing fields the bot relies on.
	ErrMissingData = errors.New("reddit response is missing expected data")
)

// Post is one ranked entry of a subreddit's weekly top listing.
type Post struct {
	Title string
	Link  string
}

// Client fetches subreddit listings from the Reddit JSON API. Requests go
// through a token-bucket rate limiter so the bot stays under Reddit's
// unauthenticated request budget.
type Client struct {
	baseURL    string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	topLimit   int
	userAgent  string
}

// NewClient creates a Reddit API client from configuration
func NewClient(cfg *config.RedditConfig) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		maxRetries: cfg.MaxRetries,
		topLimit:   cfg.TopLimit,
		userAgent:  cfg.UserAgent,
	}
}

// listingResponse mirrors the subset of Reddit's listing payload the bot
// reads. Pointer fields distinguish "absent" from "empty".
type listingResponse struct {
	Data *struct {
		Children *[]struct {
			Data *struct {
				Title     string `json:"title"`
				Permalink string `json:"permalink"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// FetchTop returns the subreddit's top posts for the trailing week, at most
// the configured limit. An empty listing is a valid result, not an error.
func (c *Client) FetchTop(ctx context.Context, subreddit string) ([]Post, error) {
	listingURL := fmt.Sprintf("%s/r/%s/top.json?limit=%d&t=week",
		c.baseURL, url.PathEscape(subreddit), c.topLimit)

	body, err := c.fetchWithRetry(ctx, listingURL)
	if err != nil {
		return nil, err
	}

	var listing listingResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("malformed reddit response: %w", err)
	}

	if listing.Data == nil || listing.Data.Children == nil {
		return nil, fmt.Errorf("listing for r/%s: %w", subreddit, ErrMissingData)
	}

	posts := make([]Post, 0, len(*listing.Data.Children))
	for _, child := range *listing.Data.Children {
		if child.Data == nil {
			return nil, fmt.Errorf("listing child for r/%s: %w", subreddit, ErrMissingData)
		}
		posts = append(posts, Post{
			Title: child.Data.Title,
			Link:  c.baseURL + child.Data.Permalink,
		})
	}

	return posts, nil
}

// SubredditExists reports whether the subreddit resolves on Reddit. A non-2xx
// status means "does not exist"; only transport failures are returned as
// errors.
func (c *Client) SubredditExists(ctx context.Context, subreddit string) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter error: %w", err)
	}

	checkURL := fmt.Sprintf("%s/r/%s", c.baseURL, url.PathEscape(subreddit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return false, fmt.Errorf("create request error: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// fetchWithRetry fetches a URL with rate limiting and exponential backoff retry
func (c *Client) fetchWithRetry(ctx context.Context, targetURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		// Wait for rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, err := c.fetch(ctx, targetURL)
		if err == nil {
			return body, nil
		}

		lastErr = err
		log.Warn().Err(err).Str("url", targetURL).Int("attempt", attempt).Msg("Reddit fetch failed")

		if attempt < c.maxRetries {
			// Exponential backoff: 1s, 2s, 4s
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// fetch performs a single HTTP request
func (c *Client) fetch(ctx context.Context, targetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request error: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body error: %w", err)
	}

	return body, nil
}
