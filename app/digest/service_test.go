package digest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/insightpress/app/cfg"
	"github.com/lysyi3m/insightpress/app/database"
	"github.com/lysyi3m/insightpress/app/draft"
	"github.com/lysyi3m/insightpress/app/feed"
	"github.com/lysyi3m/insightpress/app/news"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeCollector struct {
	mu      sync.Mutex
	items   []news.Item
	skipped []feed.Skipped
	err     error
	calls   int
}

func (f *fakeCollector) Run(ctx context.Context) (*Collected, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Collected{Items: f.items, Skipped: f.skipped}, nil
}

func (f *fakeCollector) Weights() map[string]float64 {
	return map[string]float64{"HackerNews": 1.0}
}

func (f *fakeCollector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testCfg(t *testing.T) *cfg.Cfg {
	t.Helper()
	return &cfg.Cfg{
		OutputDir:         filepath.Join(t.TempDir(), "output"),
		WeightHN:          1.0,
		WeightRSS:         0.8,
		MaxItems:          10,
		Topics:            []string{"kubernetes", "llm", "rust"},
		RecencyHours:      72,
		FuzzyThreshold:    0.85,
		WeightRecency:     3,
		WeightTopic:       4,
		WeightSource:      2,
		WeightEngagement:  2,
		UsedRetentionDays: 7,
		DraftsCount:       2,
		HashtagsMax:       3,
		CharLimit:         280,
	}
}

func testItems() []news.Item {
	ago := func(h int) *time.Time { return news.TimePtr(testNow.Add(-time.Duration(h) * time.Hour)) }
	return []news.Item{
		{Title: "Kubernetes 1.30 released with sidecar support", URL: "https://k8s.example.com/130", SourceName: "HackerNews", SourceWeight: 1, PublishedAt: ago(2), Engagement: news.IntPtr(300)},
		{Title: "Kubernetes 1.30 is out", URL: "https://k8s.example.com/130?utm_source=hn", SourceName: "blog", SourceWeight: 0.8, PublishedAt: ago(3)},
		{Title: "New LLM serving stack for Kubernetes clusters", URL: "https://llm.example.com/serving", SourceName: "blog", SourceWeight: 0.8, PublishedAt: ago(5)},
		{Title: "Election coverage tool ships", URL: "https://news.example.com/election", SourceName: "blog", SourceWeight: 0.8, PublishedAt: ago(1)},
		{Title: "Rust compiler gets faster builds", URL: "https://rust.example.com/builds", SourceName: "blog", SourceWeight: 0.8, PublishedAt: ago(10)},
		{Title: "  ", URL: "https://empty.example.com", SourceName: "blog"},
	}
}

func setupService(t *testing.T, collector Collector, opts ...Option) (*Service, *database.UsedRepository, *cfg.Cfg) {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	c := testCfg(t)
	used := database.NewUsedRepository(db)
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	service := NewService(c, collector, database.NewItemRepository(db), used, nil, opts...)

	return service, used, c
}

func TestServiceRun(t *testing.T) {
	collector := &fakeCollector{
		items:   testItems(),
		skipped: []feed.Skipped{{Feed: "blog", Title: "Sponsored post", Reason: "title excludes: sponsored"}},
	}
	service, used, _ := setupService(t, collector)

	digest, err := service.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	stats := digest.Result.Stats
	if stats.RawIn != 6 || stats.Rejected != 1 || stats.DuplicatesRemoved != 1 || stats.Final != 4 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if digest.FromCache {
		t.Error("Expected first run to collect")
	}
	if len(digest.Report.Drafts) != 2 {
		t.Fatalf("Expected 2 drafts, got %d", len(digest.Report.Drafts))
	}
	if digest.Report.Sources != 2 {
		t.Errorf("Expected 2 sources, got %d", digest.Report.Sources)
	}

	// Top candidate is the trusted, recent, engaging Kubernetes story
	if digest.Result.Candidates[0].URL != "https://k8s.example.com/130" {
		t.Errorf("Expected Kubernetes story first, got %s", digest.Result.Candidates[0].URL)
	}

	for _, c := range digest.Report.Candidates {
		for _, d := range digest.Report.Drafts {
			if c.URL == d.Item.URL {
				t.Errorf("Drafted item %s repeated in other candidates", c.URL)
			}
		}
		if len(c.TopicsMatched) == 0 {
			t.Errorf("Expected only on-topic other candidates, got %s", c.Title)
		}
	}

	data, err := os.ReadFile(digest.Path)
	if err != nil {
		t.Fatalf("Expected report file: %v", err)
	}
	md := string(data)
	for _, want := range []string{"empty title", `duplicate\_url`, "filtered by blog"} {
		if !strings.Contains(md, want) {
			t.Errorf("Expected report to mention %q", want)
		}
	}

	marked, err := used.UsedSince(testNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("UsedSince failed: %v", err)
	}
	for _, d := range digest.Report.Drafts {
		if !marked[news.CanonicalURL(d.Item.URL)] {
			t.Errorf("Expected %s to be marked used", d.Item.URL)
		}
	}

	if service.Last() != digest {
		t.Error("Expected Last to return the latest digest")
	}
}

func TestServiceRunUsesCacheAndSkipsUsed(t *testing.T) {
	collector := &fakeCollector{items: testItems()}
	service, _, _ := setupService(t, collector)

	first, err := service.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	second, err := service.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if collector.Calls() != 1 {
		t.Errorf("Expected cached second run, collector called %d times", collector.Calls())
	}
	if !second.FromCache {
		t.Error("Expected second run to come from cache")
	}
	if second.Result.Stats.RawIn != first.Result.Stats.RawIn {
		t.Errorf("Expected same raw count from cache, got %d and %d", first.Result.Stats.RawIn, second.Result.Stats.RawIn)
	}

	drafted := make(map[string]bool)
	for _, d := range first.Report.Drafts {
		drafted[d.Item.URL] = true
	}
	for _, d := range second.Report.Drafts {
		if drafted[d.Item.URL] {
			t.Errorf("Expected %s not to be drafted twice", d.Item.URL)
		}
	}

	reused := 0
	for _, s := range second.Report.Skipped {
		if strings.HasPrefix(s.Reason, "already drafted") {
			reused++
		}
	}
	if reused != len(first.Report.Drafts) {
		t.Errorf("Expected %d already drafted skips, got %d", len(first.Report.Drafts), reused)
	}
}

type echoWriter struct {
	calls int
}

func (w *echoWriter) Name() string {
	return "llm:echo"
}

func (w *echoWriter) Write(ctx context.Context, req draft.Request) (*draft.Response, error) {
	w.calls++
	return &draft.Response{
		Hook:        "A release worth a look.",
		Implication: "Teams on older versions should plan the upgrade.",
		FinalPost:   "A release worth a look. Teams on older versions should plan the upgrade.\n" + req.Item.URL,
	}, nil
}

func TestServiceRunWithWriter(t *testing.T) {
	writer := &echoWriter{}
	service, _, _ := setupService(t, &fakeCollector{items: testItems()}, WithWriter(writer))

	digest, err := service.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(digest.Report.Drafts) != 2 {
		t.Fatalf("Expected 2 drafts, got %d", len(digest.Report.Drafts))
	}
	if writer.calls != 2 {
		t.Errorf("Expected 2 writer calls, got %d", writer.calls)
	}
	for _, d := range digest.Report.Drafts {
		if d.Mode != "llm:echo" {
			t.Errorf("Expected mode 'llm:echo', got '%s'", d.Mode)
		}
		if !strings.HasSuffix(d.Content, "\n"+d.Item.URL) {
			t.Errorf("Expected content to end with the item URL, got %q", d.Content)
		}
	}
}

func TestServiceRunRefresh(t *testing.T) {
	collector := &fakeCollector{items: testItems()}
	service, _, _ := setupService(t, collector)

	if _, err := service.Run(context.Background(), false); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if _, err := service.Run(context.Background(), true); err != nil {
		t.Fatalf("Refresh run failed: %v", err)
	}

	if collector.Calls() != 2 {
		t.Errorf("Expected refresh to collect again, got %d calls", collector.Calls())
	}
}

func TestServiceRunErrors(t *testing.T) {
	t.Run("no items", func(t *testing.T) {
		service, _, _ := setupService(t, &fakeCollector{})
		if _, err := service.Run(context.Background(), false); !errors.Is(err, ErrNoItems) {
			t.Errorf("Expected ErrNoItems, got %v", err)
		}
		if service.Last() != nil {
			t.Error("Expected no digest after a failed run")
		}
	})

	t.Run("collector failure", func(t *testing.T) {
		cause := errors.New("network down")
		service, _, _ := setupService(t, &fakeCollector{err: cause})
		if _, err := service.Run(context.Background(), false); !errors.Is(err, cause) {
			t.Errorf("Expected wrapped collector error, got %v", err)
		}
	})

	t.Run("invalid cap", func(t *testing.T) {
		service, _, c := setupService(t, &fakeCollector{items: testItems()})
		c.MaxItems = 0
		if _, err := service.Run(context.Background(), false); !errors.Is(err, news.ErrInvalidCap) {
			t.Errorf("Expected ErrInvalidCap, got %v", err)
		}
	})
}

type blockingCollector struct {
	fakeCollector
	started chan struct{}
	release chan struct{}
}

func (b *blockingCollector) Run(ctx context.Context) (*Collected, error) {
	close(b.started)
	<-b.release
	return b.fakeCollector.Run(ctx)
}

func TestServiceRunInProgress(t *testing.T) {
	collector := &blockingCollector{
		fakeCollector: fakeCollector{items: testItems()},
		started:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	service, _, _ := setupService(t, collector)

	done := make(chan error, 1)
	go func() {
		_, err := service.Run(context.Background(), false)
		done <- err
	}()

	<-collector.started
	if _, err := service.Run(context.Background(), false); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Expected ErrRunInProgress, got %v", err)
	}

	close(collector.release)
	if err := <-done; err != nil {
		t.Errorf("Expected first run to succeed, got %v", err)
	}
}

func TestOtherCandidatesSkipDraftPool(t *testing.T) {
	on := func(title string) news.Item {
		return news.Item{Title: title, URL: "https://a.com/" + strings.ReplaceAll(title, " ", "-"), TopicsMatched: []string{"kubernetes"}}
	}
	fresh := []news.Item{
		on("pool one"), on("pool two"), on("pool three"),
		on("below one"),
		{Title: "below off topic", URL: "https://a.com/off"},
		on("below two"),
		on("below three"),
	}

	others := otherCandidates(fresh, 3, 3)

	if len(others) != 2 {
		t.Fatalf("Expected 2 other candidates, got %d", len(others))
	}
	if others[0].Title != "below one" || others[1].Title != "below two" {
		t.Errorf("Expected items ranked below the pool, got %s and %s", others[0].Title, others[1].Title)
	}

	if got := otherCandidates(fresh[:3], 3, 10); got != nil {
		t.Errorf("Expected no other candidates when the pool covers everything, got %v", got)
	}
}
