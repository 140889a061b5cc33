package digest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lysyi3m/insightpress/app/cfg"
	"github.com/lysyi3m/insightpress/app/feed"
	"github.com/lysyi3m/insightpress/app/hn"
	"github.com/lysyi3m/insightpress/app/news"
	"github.com/lysyi3m/insightpress/app/tasks"
)

var ErrNoSources = errors.New("no enabled sources")

// Collected is the raw output of one collection round.
type Collected struct {
	Items   []news.Item
	Skipped []feed.Skipped
}

// Collector gathers raw items from every upstream source.
type Collector interface {
	Run(ctx context.Context) (*Collected, error)
	Weights() map[string]float64
}

var _ Collector = (*SourceCollector)(nil)

// SourceCollector fans out one task per source onto the worker pool.
type SourceCollector struct {
	cfg         *cfg.Cfg
	configCache *feed.ConfigCache
	hnCollector tasks.ItemCollector
	pool        tasks.PoolInterface
	httpClient  *http.Client
	parser      *feed.Parser
	filterer    *feed.Filterer
	extractor   *feed.SummaryExtractor
}

// NewSourceCollector wires the collection tasks. A nil hnCollector disables
// Hacker News.
func NewSourceCollector(c *cfg.Cfg, configCache *feed.ConfigCache, hnCollector tasks.ItemCollector, pool tasks.PoolInterface) *SourceCollector {
	return &SourceCollector{
		cfg:         c,
		configCache: configCache,
		hnCollector: hnCollector,
		pool:        pool,
		httpClient:  &http.Client{Timeout: c.Timeout()},
		parser:      feed.NewParser(),
		filterer:    feed.NewFilterer(),
		extractor:   feed.NewSummaryExtractor(feed.DefaultSummaryLength),
	}
}

func (sc *SourceCollector) Run(ctx context.Context) (*Collected, error) {
	collection := tasks.NewCollection()

	var batch []tasks.TaskInterface
	if sc.hnCollector != nil {
		batch = append(batch, tasks.NewCollectHNTask(hn.SourceName, sc.hnCollector, collection))
	}
	for _, feedConfig := range sc.configCache.GetEnabledConfigs() {
		batch = append(batch, tasks.NewCollectFeedTask(feedConfig, sc.httpClient, sc.parser, sc.filterer,
			sc.extractor, sc.cfg.WeightRSS, sc.cfg.UserAgent, collection))
	}

	if len(batch) == 0 {
		return nil, ErrNoSources
	}

	summary := sc.pool.Run(ctx, batch)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(summary.Failed) > 0 {
		slog.Warn("Some sources failed", "failed", summary.Failed)
	}

	collected := &Collected{
		Items:   collection.Items(hn.SourceName),
		Skipped: collection.Skipped(),
	}

	slog.Info("Collection finished",
		"sources", len(batch),
		"succeeded", summary.Succeeded,
		"failed", len(summary.Failed),
		"items", len(collected.Items),
		"skipped", len(collected.Skipped))

	return collected, nil
}

// Weights returns the configured trust of every source by name.
func (sc *SourceCollector) Weights() map[string]float64 {
	weights := sc.configCache.Weights(sc.cfg.WeightRSS)
	weights[hn.SourceName] = sc.cfg.WeightHN
	return weights
}
