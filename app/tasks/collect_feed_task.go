package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lysyi3m/insightpress/app/feed"
	"github.com/lysyi3m/insightpress/app/news"
)

const maxBodyBytes = 10 << 20

type CollectFeedTask struct {
	Task
	FeedConfig    *feed.Config
	httpClient    *http.Client
	parser        *feed.Parser
	filterer      *feed.Filterer
	extractor     *feed.SummaryExtractor
	defaultWeight float64
	userAgent     string
	collection    *Collection
}

func NewCollectFeedTask(feedConfig *feed.Config, httpClient *http.Client, parser *feed.Parser, filterer *feed.Filterer, extractor *feed.SummaryExtractor, defaultWeight float64, userAgent string, collection *Collection) *CollectFeedTask {
	return &CollectFeedTask{
		Task:          NewTask(TaskTypeCollectFeed, feedConfig.Name),
		FeedConfig:    feedConfig,
		httpClient:    httpClient,
		parser:        parser,
		filterer:      filterer,
		extractor:     extractor,
		defaultWeight: defaultWeight,
		userAgent:     userAgent,
		collection:    collection,
	}
}

func (t *CollectFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.SourceName)
		return nil
	}

	data, err := t.fetch(ctx, t.FeedConfig.URL, "")
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	_, entries, err := t.parser.Run(data)
	if err != nil {
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	marked := t.filterer.Run(entries, t.FeedConfig)
	items, skipped := feed.ToNews(t.FeedConfig, marked, t.defaultWeight, t.extractor)

	extracted := 0
	if t.FeedConfig.Settings.ExtractSummary {
		extracted = t.extractSummaries(ctx, items)
	}

	t.collection.Set(t.SourceName, items)
	t.collection.AddSkipped(skipped...)

	slog.Info("Task completed",
		"type", string(t.GetType()),
		"feed", t.SourceName,
		"duration", t.GetDuration(),
		"total", len(entries),
		"filtered", len(skipped),
		"summaries", extracted,
		"collected", len(items))

	return nil
}

// extractSummaries fills empty summaries from the linked article pages.
// Failures only leave the summary empty.
func (t *CollectFeedTask) extractSummaries(ctx context.Context, items []news.Item) int {
	count := 0
	for i := range items {
		if items[i].Summary != "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		data, err := t.fetch(ctx, items[i].URL, "text/html")
		if err != nil {
			slog.Debug("Failed to fetch article", "feed", t.SourceName, "url", items[i].URL, "error", err)
			continue
		}

		summary, err := t.extractor.Run(data)
		if err != nil {
			slog.Debug("Failed to extract summary", "feed", t.SourceName, "url", items[i].URL, "error", err)
			continue
		}

		items[i].Summary = summary
		count++
	}
	return count
}

func (t *CollectFeedTask) fetch(ctx context.Context, url, wantType string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, t.FeedConfig.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	if wantType != "" {
		contentType := resp.Header.Get("Content-Type")
		if !strings.Contains(strings.ToLower(contentType), wantType) {
			return nil, fmt.Errorf("unexpected content type: %s", contentType)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
