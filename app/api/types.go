package api

import (
	"context"
	"time"

	"github.com/lysyi3m/insightpress/app/digest"
	"github.com/lysyi3m/insightpress/app/feed"
	"github.com/lysyi3m/insightpress/app/news"
)

type DigestService interface {
	Run(ctx context.Context, refresh bool) (*digest.Digest, error)
	Last() *digest.Digest
	Running() bool
}

var _ DigestService = (*digest.Service)(nil)

type GeneratorInterface interface {
	Run(items []news.Item, builtAt time.Time) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Handler struct {
	ctx       context.Context
	service   DigestService
	generator GeneratorInterface
}

type breakdownResponse struct {
	Recency    float64 `json:"recency"`
	Topic      float64 `json:"topic"`
	Source     float64 `json:"source"`
	Engagement float64 `json:"engagement"`
}

type candidateResponse struct {
	Rank        int               `json:"rank"`
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Source      string            `json:"source"`
	Score       float64           `json:"score"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	Engagement  *int              `json:"engagement,omitempty"`
	Topics      []string          `json:"topics"`
	Breakdown   breakdownResponse `json:"breakdown"`
	Reasons     []string          `json:"reasons"`
}

type draftResponse struct {
	URL      string   `json:"url"`
	Content  string   `json:"content"`
	Chars    int      `json:"chars"`
	Hashtags []string `json:"hashtags"`
	Mode     string   `json:"mode"`
}

type candidatesResponse struct {
	GeneratedAt time.Time           `json:"generated_at"`
	FromCache   bool                `json:"from_cache"`
	Stats       news.Stats          `json:"stats"`
	Drafts      []draftResponse     `json:"drafts"`
	Candidates  []candidateResponse `json:"candidates"`
}
