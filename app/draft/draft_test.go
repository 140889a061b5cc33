package draft

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/lysyi3m/insightpress/app/news"
)

func TestHashtagsRun(t *testing.T) {
	h := DefaultHashtags()

	item := news.Item{Title: "New LLM tooling for Kubernetes operators"}
	tags := h.Run(item, 3)
	expected := []string{"llm", "kubernetes"}
	if !reflect.DeepEqual(tags, expected) {
		t.Errorf("Expected %v, got %v", expected, tags)
	}

	if got := h.Run(item, 1); len(got) != 1 || got[0] != "llm" {
		t.Errorf("Expected max to cap tags, got %v", got)
	}

	if got := h.Run(item, 0); len(got) != 0 {
		t.Errorf("Expected no tags for max 0, got %v", got)
	}
}

func TestHashtagsWholeWords(t *testing.T) {
	h := DefaultHashtags()

	// "ai" inside "maintain" must not match
	tags := h.Run(news.Item{Title: "How to maintain legacy trains"}, 3)
	if len(tags) != 0 {
		t.Errorf("Expected no tags, got %v", tags)
	}

	tags = h.Run(news.Item{Title: "Go 1.23 and golang tooling"}, 3)
	if !reflect.DeepEqual(tags, []string{"golang"}) {
		t.Errorf("Expected a single deduplicated golang tag, got %v", tags)
	}

	tags = h.Run(news.Item{Title: "Release notes", Summary: "Big changes to Docker networking"}, 3)
	if !reflect.DeepEqual(tags, []string{"docker"}) {
		t.Errorf("Expected summary match, got %v", tags)
	}
}

func TestLoadHashtags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hashtags.yml")

	content := `mappings:
  zig: ZigLang
  rust: RustLang
  "open source": OpenSource
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write hashtags file: %v", err)
	}

	h, err := LoadHashtags(path)
	if err != nil {
		t.Fatalf("LoadHashtags failed: %v", err)
	}

	tags := h.Run(news.Item{Title: "Rust and Zig in open source"}, 5)
	expected := []string{"ziglang", "rustlang", "opensource"}
	if !reflect.DeepEqual(tags, expected) {
		t.Errorf("Expected file order %v, got %v", expected, tags)
	}
}

func TestLoadHashtagsMissingFile(t *testing.T) {
	h, err := LoadHashtags(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got error: %v", err)
	}
	if len(h.mappings) != len(defaultMappings) {
		t.Errorf("Expected %d default mappings, got %d", len(defaultMappings), len(h.mappings))
	}
}

func TestLoadHashtagsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	os.WriteFile(path, []byte("other: value\n"), 0644)

	if _, err := LoadHashtags(path); err == nil {
		t.Error("Expected error for file without mappings")
	}
}

func TestHook(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		expected string
	}{
		{"short title", "A tiny Go tool", "A tiny Go tool"},
		{"show hn prefix", "Show HN: A tiny Go tool", "A tiny Go tool"},
		{"introducing prefix", "Introducing Widgets", "Widgets"},
		{"sentence boundary", "Postgres 17 is out. Here is everything that changed in it", "Postgres 17 is out."},
		{"word boundary", "Scaling a monolith to millions of requests with boring technology", "Scaling a monolith to millions of requests with"},
		{"dangling word", "Why we moved every internal service off of the shared cluster", "Why we moved every internal service off of"},
		{"no spaces", strings.Repeat("x", 60), strings.Repeat("x", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Hook(tt.title)
			if got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
			if len([]rune(got)) > MaxHookLength {
				t.Errorf("Hook longer than %d: %d", MaxHookLength, len([]rune(got)))
			}
		})
	}
}

func testCandidates() []news.Item {
	return []news.Item{
		{Title: "Kubernetes security update for cloud clusters", URL: "https://k8s.example.com/post"},
		{Title: "Kubernetes security update for cloud clusters", URL: "https://mirror.example.com/post"},
		{Title: "LLM agents in production", URL: "https://llm.example.com/agents"},
		{Title: "A quiet release of a database", URL: "https://db.example.com/release"},
	}
}

func TestComposerRun(t *testing.T) {
	c := NewComposer(Config{Count: 2, CharLimit: 280, HashtagsMax: 3}, nil)

	drafts := c.Run(context.Background(), testCandidates())
	if len(drafts) != 2 {
		t.Fatalf("Expected 2 drafts, got %d", len(drafts))
	}

	// The repeated title is skipped
	if drafts[0].Item.URL != "https://k8s.example.com/post" || drafts[1].Item.URL != "https://llm.example.com/agents" {
		t.Errorf("Unexpected drafted items: %s, %s", drafts[0].Item.URL, drafts[1].Item.URL)
	}

	first := drafts[0]
	if !strings.HasPrefix(first.Content, first.Hook+" "+first.Implication) {
		t.Errorf("Expected content to start with hook and implication, got %q", first.Content)
	}
	if !strings.Contains(first.Content, "\nhttps://k8s.example.com/post") {
		t.Errorf("Expected URL on its own line, got %q", first.Content)
	}
	if !reflect.DeepEqual(first.Hashtags, []string{"kubernetes", "security", "cloudcomputing"}) {
		t.Errorf("Unexpected hashtags: %v", first.Hashtags)
	}
	if !strings.HasSuffix(first.Content, "\n#kubernetes #security #cloudcomputing") {
		t.Errorf("Expected hashtag line, got %q", first.Content)
	}
	if strings.Contains(first.Implication, "{") {
		t.Errorf("Expected placeholders to be filled, got %q", first.Implication)
	}
}

func TestComposerDeterministic(t *testing.T) {
	c := NewComposer(Config{Count: 5, CharLimit: 280, HashtagsMax: 3}, nil)

	a := c.Run(context.Background(), testCandidates())
	b := c.Run(context.Background(), testCandidates())

	if len(a) != len(b) {
		t.Fatalf("Expected same number of drafts, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Content != b[i].Content {
			t.Errorf("Draft %d differs between runs:\n%s\n%s", i, a[i].Content, b[i].Content)
		}
	}
}

func TestComposerTrimsHashtagsFirst(t *testing.T) {
	item := testCandidates()[0]

	full := NewComposer(Config{Count: 1, CharLimit: 1000, HashtagsMax: 3}, nil).Run(context.Background(), []news.Item{item})[0]

	bare := full
	bare.Hashtags = nil
	limit := len([]rune(render(bare)))

	trimmed := NewComposer(Config{Count: 1, CharLimit: limit, HashtagsMax: 3}, nil).Run(context.Background(), []news.Item{item})
	if len(trimmed) != 1 {
		t.Fatalf("Expected draft to fit after trimming, got %d drafts", len(trimmed))
	}

	d := trimmed[0]
	if len(d.Hashtags) != 0 {
		t.Errorf("Expected hashtags to be removed, got %v", d.Hashtags)
	}
	if d.Hook != full.Hook || d.Action != full.Action {
		t.Error("Expected hook and action to survive when dropping hashtags is enough")
	}
	if d.CharCount() != limit {
		t.Errorf("Expected %d chars, got %d", limit, d.CharCount())
	}
}

func TestComposerShortensHook(t *testing.T) {
	item := news.Item{Title: "Scaling a monolith to millions of requests", URL: "https://a.example.com/x"}

	full := NewComposer(Config{Count: 1, CharLimit: 1000}, nil).Run(context.Background(), []news.Item{item})[0]
	limit := full.CharCount() - 5

	drafts := NewComposer(Config{Count: 1, CharLimit: limit}, nil).Run(context.Background(), []news.Item{item})
	if len(drafts) != 1 {
		t.Fatalf("Expected a shortened draft, got %d", len(drafts))
	}
	if drafts[0].CharCount() > limit {
		t.Errorf("Expected at most %d chars, got %d", limit, drafts[0].CharCount())
	}
	if len(drafts[0].Hook) >= len(full.Hook) && drafts[0].Action == full.Action {
		t.Error("Expected the action or hook to be shortened")
	}
}

func TestComposerSkipsUnfittable(t *testing.T) {
	c := NewComposer(Config{Count: 3, CharLimit: 20}, nil)

	drafts := c.Run(context.Background(), testCandidates())
	if len(drafts) != 0 {
		t.Errorf("Expected no drafts under a tiny limit, got %d", len(drafts))
	}
}

func TestHighTopicConfidence(t *testing.T) {
	tests := []struct {
		name     string
		item     news.Item
		expected bool
	}{
		{"no topics", news.Item{Title: "Kubernetes release"}, false},
		{"on topic", news.Item{Title: "Kubernetes release", TopicsMatched: []string{"kubernetes"}}, true},
		{"off brand", news.Item{Title: "Election night automation", TopicsMatched: []string{"automation"}}, false},
		{"off brand with tech", news.Item{Title: "Movie studio adopts AI pipelines", TopicsMatched: []string{"ai"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HighTopicConfidence(tt.item); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}
