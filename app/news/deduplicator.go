package news

import (
	"sort"
	"strings"
)

const (
	DefaultFuzzyThreshold = 0.85
	DefaultFuzzyLimit     = 500
)

type DedupResult struct {
	Items        []Item
	Duplicates   []Duplicate
	FuzzySkipped int // survivors left out of the fuzzy pass by the limit
}

// Deduplicator collapses items that describe the same story. Items sharing a
// canonical URL are merged first, then items whose title fingerprints have a
// token-set Jaccard similarity at or above the threshold are grouped
// transitively. The fuzzy pass compares every pair, so only the first
// fuzzyLimit survivors take part in it (0 disables the limit).
type Deduplicator struct {
	threshold  float64
	fuzzyLimit int
}

func NewDeduplicator(threshold float64, fuzzyLimit int) *Deduplicator {
	return &Deduplicator{
		threshold:  threshold,
		fuzzyLimit: fuzzyLimit,
	}
}

type dedupEntry struct {
	item   Item
	index  int
	key    string
	tokens []string
}

func (d *Deduplicator) Run(items []Item) DedupResult {
	if len(items) == 0 {
		return DedupResult{Items: []Item{}}
	}

	entries := make([]*dedupEntry, len(items))
	for i, item := range items {
		entries[i] = &dedupEntry{item: item, index: i, key: CanonicalURL(item.URL)}
	}

	var duplicates []Duplicate
	survivors, dups := d.exactPass(entries)
	duplicates = append(duplicates, dups...)

	fuzzyCount := len(survivors)
	if d.fuzzyLimit > 0 && fuzzyCount > d.fuzzyLimit {
		fuzzyCount = d.fuzzyLimit
	}
	skipped := len(survivors) - fuzzyCount

	merged, dups := d.fuzzyPass(survivors[:fuzzyCount])
	duplicates = append(duplicates, dups...)

	final := make([]*dedupEntry, 0, len(merged)+skipped)
	final = append(final, merged...)
	final = append(final, survivors[fuzzyCount:]...)
	sort.Slice(final, func(a, b int) bool {
		return final[a].index < final[b].index
	})

	result := DedupResult{
		Items:        make([]Item, len(final)),
		Duplicates:   duplicates,
		FuzzySkipped: skipped,
	}
	for i, e := range final {
		result.Items[i] = e.item
	}
	return result
}

func (d *Deduplicator) exactPass(entries []*dedupEntry) ([]*dedupEntry, []Duplicate) {
	groups := make(map[string][]*dedupEntry)
	var order []string
	for _, e := range entries {
		if _, ok := groups[e.key]; !ok {
			order = append(order, e.key)
		}
		groups[e.key] = append(groups[e.key], e)
	}

	survivors := make([]*dedupEntry, 0, len(order))
	var duplicates []Duplicate
	for _, key := range order {
		group := groups[key]
		rep := pickRepresentative(group)
		survivors = append(survivors, rep)
		for _, e := range group {
			if e == rep {
				continue
			}
			duplicates = append(duplicates, Duplicate{
				Item:       e.item,
				KeptURL:    rep.item.URL,
				Reason:     ReasonExactURL,
				Similarity: 1,
			})
		}
	}

	sort.Slice(survivors, func(a, b int) bool {
		return survivors[a].index < survivors[b].index
	})
	return survivors, duplicates
}

func (d *Deduplicator) fuzzyPass(entries []*dedupEntry) ([]*dedupEntry, []Duplicate) {
	if len(entries) < 2 {
		return entries, nil
	}

	for _, e := range entries {
		e.tokens = tokenSet(TitleFingerprint(e.item.Title))
	}

	uf := newUnionFind(len(entries))
	for i := 0; i < len(entries); i++ {
		a := entries[i].tokens
		if len(a) == 0 {
			continue
		}
		for j := i + 1; j < len(entries); j++ {
			b := entries[j].tokens
			if len(b) == 0 || !lengthCompatible(len(a), len(b), d.threshold) {
				continue
			}
			if jaccard(a, b) >= d.threshold {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]*dedupEntry)
	var roots []int
	for i, e := range entries {
		root := uf.find(i)
		if _, ok := groups[root]; !ok {
			roots = append(roots, root)
		}
		groups[root] = append(groups[root], e)
	}

	kept := make([]*dedupEntry, 0, len(roots))
	var duplicates []Duplicate
	for _, root := range roots {
		group := groups[root]
		rep := pickRepresentative(group)
		kept = append(kept, rep)
		for _, e := range group {
			if e == rep {
				continue
			}
			duplicates = append(duplicates, Duplicate{
				Item:       e.item,
				KeptURL:    rep.item.URL,
				Reason:     ReasonFuzzyTitle,
				Similarity: jaccard(e.tokens, rep.tokens),
			})
		}
	}

	return kept, duplicates
}

// pickRepresentative prefers the highest source weight, then the earliest
// known publication time, then the earliest arrival.
func pickRepresentative(group []*dedupEntry) *dedupEntry {
	best := group[0]
	for _, e := range group[1:] {
		if preferred(e, best) {
			best = e
		}
	}
	return best
}

func preferred(a, b *dedupEntry) bool {
	if a.item.SourceWeight != b.item.SourceWeight {
		return a.item.SourceWeight > b.item.SourceWeight
	}

	pa, pb := a.item.PublishedAt, b.item.PublishedAt
	switch {
	case pa != nil && pb == nil:
		return true
	case pa == nil && pb != nil:
		return false
	case pa != nil && pb != nil && !pa.Equal(*pb):
		return pa.Before(*pb)
	}

	return a.index < b.index
}

// tokenSet returns the sorted distinct words of a fingerprint.
func tokenSet(fingerprint string) []string {
	fields := strings.Fields(fingerprint)
	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)

	out := fields[:1]
	for _, f := range fields[1:] {
		if f != out[len(out)-1] {
			out = append(out, f)
		}
	}
	return out
}

// lengthCompatible reports whether two sets of the given sizes could reach
// the threshold. Jaccard is bounded above by min/max.
func lengthCompatible(a, b int, threshold float64) bool {
	if a > b {
		a, b = b, a
	}
	return float64(a)/float64(b) >= threshold
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inter := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}

	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union keeps the smaller index as root so group order follows arrival.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
