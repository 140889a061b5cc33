package news

import (
	"time"
)

// Item is the canonical representation every source is normalized into.
type Item struct {
	Title        string
	URL          string
	SourceName   string
	SourceWeight float64    // 0..1, clamped by the canonicalizer
	PublishedAt  *time.Time // nil when the source does not report a date
	Engagement   *int       // nil when the source has no engagement signal
	Summary      string

	// Populated by the scorer
	TopicsMatched []string
	Score         float64
	Breakdown     Breakdown

	scored bool
}

// Breakdown holds the unweighted sub-scores, each in [0, ScoreScale].
type Breakdown struct {
	Recency    float64
	Topic      float64
	Source     float64
	Engagement float64
}

func (i Item) Scored() bool {
	return i.scored
}

// Rejection records an item dropped before deduplication.
type Rejection struct {
	Item   Item
	Reason string
}

// Duplicate records an item collapsed into another story.
type Duplicate struct {
	Item       Item
	KeptURL    string
	Reason     string
	Similarity float64
}

const (
	ReasonExactURL   = "duplicate_url"
	ReasonFuzzyTitle = "similar_title"
)

type Stats struct {
	RawIn             int `json:"raw_in"`
	Rejected          int `json:"rejected"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	Scored            int `json:"scored"`
	Final             int `json:"final"`
	FuzzySkipped      int `json:"fuzzy_skipped"`
}

type Result struct {
	Candidates []Item
	Duplicates []Duplicate
	Rejected   []Rejection
	Stats      Stats
}

func IntPtr(v int) *int {
	return &v
}

func TimePtr(t time.Time) *time.Time {
	return &t
}
