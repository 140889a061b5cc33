package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/insightpress/app/cfg"
	"github.com/lysyi3m/insightpress/app/database"
	"github.com/lysyi3m/insightpress/app/draft"
	"github.com/lysyi3m/insightpress/app/feed"
	"github.com/lysyi3m/insightpress/app/news"
	"github.com/lysyi3m/insightpress/app/report"
)

var (
	ErrNoItems       = errors.New("no items collected")
	ErrRunInProgress = errors.New("digest run already in progress")
)

// Drafts are picked from this many candidates per requested draft.
const draftPoolMultiple = 3

// Digest is the outcome of one run.
type Digest struct {
	Report    *report.Report
	Result    *news.Result
	Path      string
	FromCache bool
}

type Option func(*Service)

// WithClock replaces the wall clock used as the run's reference time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithWriter drafts through w before falling back to templates.
func WithWriter(w draft.Writer) Option {
	return func(s *Service) {
		s.writer = w
	}
}

type Service struct {
	cfg       *cfg.Cfg
	collector Collector
	itemCache database.ItemCacheRepository
	usedItems database.UsedItemRepository
	composer  *draft.Composer
	writer    draft.Writer
	now       func() time.Time

	running sync.Mutex
	active  atomic.Bool
	mu      sync.RWMutex
	last    *Digest
}

func NewService(c *cfg.Cfg, collector Collector, itemCache database.ItemCacheRepository,
	usedItems database.UsedItemRepository, hashtags *draft.Hashtags, opts ...Option) *Service {
	s := &Service{
		cfg:       c,
		collector: collector,
		itemCache: itemCache,
		usedItems: usedItems,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	var composerOpts []draft.Option
	if s.writer != nil {
		composerOpts = append(composerOpts, draft.WithWriter(s.writer))
	}
	s.composer = draft.NewComposer(draft.Config{
		Count:       c.DraftsCount,
		CharLimit:   c.CharLimit,
		HashtagsMax: c.HashtagsMax,
	}, hashtags, composerOpts...)

	return s
}

// Last returns the most recent successful digest, or nil.
func (s *Service) Last() *Digest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Running reports whether a digest is being built right now.
func (s *Service) Running() bool {
	return s.active.Load()
}

// Run loads or collects today's items, ranks them, drafts posts from the
// best unused candidates and writes the report. Only one run executes at a
// time; concurrent callers get ErrRunInProgress.
func (s *Service) Run(ctx context.Context, refresh bool) (*Digest, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	s.active.Store(true)
	defer s.active.Store(false)

	start := time.Now()
	now := s.now()
	day := database.DayKey(now)

	raw, skipped, fromCache, err := s.load(ctx, day, refresh)
	if err != nil {
		return nil, err
	}

	result, err := news.Run(raw, s.params(now))
	if err != nil {
		return nil, fmt.Errorf("failed to rank items: %w", err)
	}
	if result.Stats.FuzzySkipped > 0 {
		slog.Warn("Fuzzy dedup limit reached, some items were only deduplicated by URL",
			"skipped", result.Stats.FuzzySkipped, "limit", news.DefaultFuzzyLimit)
	}

	retention := now.AddDate(0, 0, -s.cfg.UsedRetentionDays)
	used, err := s.usedItems.UsedSince(retention)
	if err != nil {
		return nil, err
	}

	fresh, reused := splitUsed(result.Candidates, used)
	pool := s.cfg.DraftsCount * draftPoolMultiple
	drafts := s.composer.Run(ctx, fresh[:min(len(fresh), pool)])

	if err := s.markUsed(drafts, now, retention); err != nil {
		return nil, err
	}

	rep := &report.Report{
		GeneratedAt: now,
		CharLimit:   s.cfg.CharLimit,
		Drafts:      drafts,
		Candidates:  otherCandidates(fresh, pool, s.cfg.MaxItems),
		Skipped:     skips(result, skipped, reused, s.cfg.UsedRetentionDays),
		Stats:       result.Stats,
		Sources:     countSources(raw),
	}

	path, err := rep.Write(s.cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	digest := &Digest{Report: rep, Result: result, Path: path, FromCache: fromCache}

	s.mu.Lock()
	s.last = digest
	s.mu.Unlock()

	slog.Info("Digest completed",
		"day", day,
		"cached", fromCache,
		"raw", result.Stats.RawIn,
		"duplicates", result.Stats.DuplicatesRemoved,
		"candidates", result.Stats.Final,
		"drafts", len(drafts),
		"duration", time.Since(start))

	return digest, nil
}

func (s *Service) load(ctx context.Context, day string, refresh bool) ([]news.Item, []feed.Skipped, bool, error) {
	if !refresh {
		items, err := s.itemCache.LoadDay(day)
		if err != nil {
			return nil, nil, false, err
		}
		if len(items) > 0 {
			slog.Info("Using cached items", "day", day, "items", len(items))
			return items, nil, true, nil
		}
	}

	collected, err := s.collector.Run(ctx)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to collect items: %w", err)
	}
	if len(collected.Items) == 0 {
		return nil, nil, false, ErrNoItems
	}

	if err := s.itemCache.SaveDay(day, collected.Items); err != nil {
		return nil, nil, false, err
	}

	cutoff := database.DayKey(s.now().AddDate(0, 0, -s.cfg.UsedRetentionDays))
	if pruned, err := s.itemCache.PruneBefore(cutoff); err != nil {
		slog.Warn("Failed to prune item cache", "error", err)
	} else if pruned > 0 {
		slog.Debug("Pruned item cache", "rows", pruned, "before", cutoff)
	}

	return collected.Items, collected.Skipped, false, nil
}

func (s *Service) params(now time.Time) news.Params {
	params := news.DefaultParams(now)
	params.Cap = s.cfg.MaxItems
	params.FuzzyThreshold = s.cfg.FuzzyThreshold

	params.Score.Topics = s.cfg.Topics
	params.Score.RecencyWindow = s.cfg.RecencyWindow()
	params.Score.Weights = news.ScoreWeights{
		Recency:    s.cfg.WeightRecency,
		Topic:      s.cfg.WeightTopic,
		Source:     s.cfg.WeightSource,
		Engagement: s.cfg.WeightEngagement,
	}
	params.Score.SourceWeights = s.collector.Weights()

	return params
}

func (s *Service) markUsed(drafts []draft.Draft, now, retention time.Time) error {
	used := make([]database.UsedItem, 0, len(drafts))
	for _, d := range drafts {
		used = append(used, database.UsedItem{
			URL:    news.CanonicalURL(d.Item.URL),
			Title:  d.Item.Title,
			UsedAt: now,
		})
	}

	if err := s.usedItems.MarkUsed(used); err != nil {
		return err
	}

	if pruned, err := s.usedItems.PruneBefore(retention); err != nil {
		slog.Warn("Failed to prune used items", "error", err)
	} else if pruned > 0 {
		slog.Debug("Pruned used items", "rows", pruned)
	}
	return nil
}

// splitUsed separates candidates already drafted within the retention
// window, keeping rank order in both halves.
func splitUsed(candidates []news.Item, used map[string]bool) ([]news.Item, []news.Item) {
	var fresh, reused []news.Item
	for _, item := range candidates {
		if used[news.CanonicalURL(item.URL)] {
			reused = append(reused, item)
			continue
		}
		fresh = append(fresh, item)
	}
	return fresh, reused
}

// otherCandidates lists on-topic items ranked below the draft pool, at most
// limit of them. Pool items that were not drafted are left out.
func otherCandidates(fresh []news.Item, pool, limit int) []news.Item {
	if pool >= len(fresh) {
		return nil
	}
	remaining := fresh[pool:]
	remaining = remaining[:min(len(remaining), limit)]

	var others []news.Item
	for _, item := range remaining {
		if draft.HighTopicConfidence(item) {
			others = append(others, item)
		}
	}
	return others
}

func skips(result *news.Result, filtered []feed.Skipped, reused []news.Item, retentionDays int) []report.Skip {
	var out []report.Skip

	for _, r := range result.Rejected {
		out = append(out, report.Skip{Title: r.Item.Title, Reason: r.Reason})
	}
	for _, d := range result.Duplicates {
		reason := fmt.Sprintf("%s of %s", d.Reason, d.KeptURL)
		if d.Reason == news.ReasonFuzzyTitle {
			reason = fmt.Sprintf("%s of %s (similarity %.2f)", d.Reason, d.KeptURL, d.Similarity)
		}
		out = append(out, report.Skip{Title: d.Item.Title, Reason: reason})
	}
	for _, f := range filtered {
		out = append(out, report.Skip{Title: f.Title, Reason: fmt.Sprintf("filtered by %s: %s", f.Feed, f.Reason)})
	}
	for _, item := range reused {
		out = append(out, report.Skip{Title: item.Title, Reason: fmt.Sprintf("already drafted in the last %d days", retentionDays)})
	}

	return out
}

func countSources(items []news.Item) int {
	seen := make(map[string]bool)
	for _, item := range items {
		seen[item.SourceName] = true
	}
	return len(seen)
}
