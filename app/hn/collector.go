package hn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/insightpress/app/news"
)

const (
	SourceName         = "HackerNews"
	DefaultConcurrency = 10
	discussionURL      = "https://news.ycombinator.com/item?id=%d"
)

type Collector struct {
	client      *Client
	storyType   string
	maxStories  int
	weight      float64
	concurrency int
}

func NewCollector(client *Client, storyType string, maxStories int, weight float64) *Collector {
	return &Collector{
		client:      client,
		storyType:   storyType,
		maxStories:  maxStories,
		weight:      weight,
		concurrency: DefaultConcurrency,
	}
}

// Run fetches the configured story list and converts every live story into
// a ranking item, preserving the list order. Items that fail to load are
// logged and skipped.
func (c *Collector) Run(ctx context.Context) ([]news.Item, error) {
	ids, err := c.client.StoryIDs(ctx, c.storyType, c.maxStories)
	if err != nil {
		return nil, err
	}

	stories := make([]*Story, len(ids))

	var wg sync.WaitGroup
	sem := make(chan struct{}, c.concurrency)

	for i, id := range ids {
		wg.Add(1)
		go func(idx int, id int64) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			story, err := c.client.Story(ctx, id)
			if err != nil {
				slog.Warn("Failed to fetch story", "id", id, "error", err)
				return
			}
			stories[idx] = story
		}(i, id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("story collection interrupted: %w", err)
	}

	items := make([]news.Item, 0, len(stories))
	for _, story := range stories {
		if item, ok := c.toItem(story); ok {
			items = append(items, item)
		}
	}

	slog.Info("Hacker News collected", "list", c.storyType, "ids", len(ids), "items", len(items))
	return items, nil
}

func (c *Collector) toItem(story *Story) (news.Item, bool) {
	if story == nil || story.Type != "story" || story.Dead || story.Deleted {
		return news.Item{}, false
	}

	title := strings.TrimSpace(story.Title)
	if title == "" {
		return news.Item{}, false
	}

	url := strings.TrimSpace(story.URL)
	if url == "" {
		url = fmt.Sprintf(discussionURL, story.ID)
	}

	item := news.Item{
		Title:        title,
		URL:          url,
		SourceName:   SourceName,
		SourceWeight: c.weight,
		Engagement:   news.IntPtr(story.Score),
	}
	if story.Time > 0 {
		item.PublishedAt = news.TimePtr(time.Unix(story.Time, 0).UTC())
	}

	return item, true
}
