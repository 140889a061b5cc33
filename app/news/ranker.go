package news

import (
	"fmt"
	"sort"
)

// Ranker orders scored items and truncates the list.
type Ranker struct{}

func NewRanker() *Ranker {
	return &Ranker{}
}

// Run returns at most limit items ordered by score descending. Equal scores
// fall back to the earlier publication time (unknown last), then to input
// position, so the order is total.
func (r *Ranker) Run(items []Item, limit int) ([]Item, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCap, limit)
	}

	for i, item := range items {
		if !item.scored {
			return nil, fmt.Errorf("%w: position %d (%s)", ErrUnscoredItem, i, item.URL)
		}
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return rankBefore(items[order[a]], order[a], items[order[b]], order[b])
	})

	n := min(limit, len(items))
	ranked := make([]Item, n)
	for i := 0; i < n; i++ {
		ranked[i] = items[order[i]]
	}
	return ranked, nil
}

func rankBefore(a Item, ai int, b Item, bi int) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}

	pa, pb := a.PublishedAt, b.PublishedAt
	switch {
	case pa != nil && pb == nil:
		return true
	case pa == nil && pb != nil:
		return false
	case pa != nil && pb != nil && !pa.Equal(*pb):
		return pa.Before(*pb)
	}

	return ai < bi
}
