package tasks

import (
	"sort"
	"sync"

	"github.com/lysyi3m/insightpress/app/feed"
	"github.com/lysyi3m/insightpress/app/news"
)

// Collection gathers the output of concurrently running collection tasks.
type Collection struct {
	mu       sync.Mutex
	bySource map[string][]news.Item
	skipped  []feed.Skipped
}

func NewCollection() *Collection {
	return &Collection{bySource: make(map[string][]news.Item)}
}

// Set replaces the items of a source so a retried task never duplicates
// its own output.
func (c *Collection) Set(source string, items []news.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySource[source] = items
}

func (c *Collection) AddSkipped(skipped ...feed.Skipped) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipped = append(c.skipped, skipped...)
}

// Items merges all sources into one slice. Sources named in first come
// first in that order, the rest follow sorted by name, so the result does
// not depend on task completion order.
func (c *Collection) Items(first ...string) []news.Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]bool, len(first))
	var order []string
	for _, name := range first {
		if _, ok := c.bySource[name]; ok && !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range c.bySource {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	var items []news.Item
	for _, name := range order {
		items = append(items, c.bySource[name]...)
	}
	return items
}

func (c *Collection) Skipped() []feed.Skipped {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]feed.Skipped, len(c.skipped))
	copy(out, c.skipped)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Feed < out[j].Feed
	})
	return out
}

func (c *Collection) SourceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bySource)
}
