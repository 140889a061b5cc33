package hn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultBaseURL   = "https://hacker-news.firebaseio.com/v0"
	maxResponseBytes = 1 << 20
)

// Story is a Hacker News item as returned by the Firebase API.
type Story struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Type        string `json:"type"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`
}

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StoryIDs returns the ranked ids of a story list such as "beststories".
func (c *Client) StoryIDs(ctx context.Context, storyType string, limit int) ([]int64, error) {
	var ids []int64
	if err := c.get(ctx, fmt.Sprintf("%s/%s.json", c.baseURL, storyType), &ids); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", storyType, err)
	}

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (c *Client) Story(ctx context.Context, id int64) (*Story, error) {
	var story Story
	if err := c.get(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id), &story); err != nil {
		return nil, fmt.Errorf("failed to fetch item %d: %w", id, err)
	}
	return &story, nil
}

func (c *Client) get(ctx context.Context, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
