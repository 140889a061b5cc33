package news

import (
	"math"
	"strings"
	"time"
)

const ScoreScale = 10.0

const (
	DefaultRecencyWindow        = 72 * time.Hour
	DefaultRecencyFloor         = 0.0
	DefaultNeutralRecency       = 5.0
	DefaultTopicSaturation      = 3
	DefaultEngagementSaturation = 500
)

type ScoreWeights struct {
	Recency    float64
	Topic      float64
	Source     float64
	Engagement float64
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Recency: 3, Topic: 4, Source: 2, Engagement: 2}
}

type ScoreConfig struct {
	Topics  []string
	Weights ScoreWeights

	RecencyWindow  time.Duration
	RecencyFloor   float64
	NeutralRecency float64 // used when PublishedAt is unknown

	TopicSaturation      int // matches needed for the full topic score
	EngagementSaturation int // engagement count that earns the full score

	// SourceWeights overrides Item.SourceWeight per source name
	SourceWeights map[string]float64
}

func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		Weights:              DefaultScoreWeights(),
		RecencyWindow:        DefaultRecencyWindow,
		RecencyFloor:         DefaultRecencyFloor,
		NeutralRecency:       DefaultNeutralRecency,
		TopicSaturation:      DefaultTopicSaturation,
		EngagementSaturation: DefaultEngagementSaturation,
	}
}

type topicMatcher struct {
	name   string
	tokens []string
}

// Scorer assigns every item a weighted sum of four bounded sub-scores.
// It never reads the clock; callers pass the reference time.
type Scorer struct {
	cfg    ScoreConfig
	topics []topicMatcher
}

func NewScorer(cfg ScoreConfig) *Scorer {
	s := &Scorer{cfg: cfg}

	seen := make(map[string]bool)
	for _, topic := range cfg.Topics {
		fp := TitleFingerprint(topic)
		if fp == "" || seen[fp] {
			continue
		}
		seen[fp] = true
		s.topics = append(s.topics, topicMatcher{
			name:   strings.TrimSpace(topic),
			tokens: strings.Fields(fp),
		})
	}

	return s
}

func (s *Scorer) Run(items []Item, now time.Time) []Item {
	scored := make([]Item, len(items))
	for i, item := range items {
		scored[i] = s.score(item, now)
	}
	return scored
}

func (s *Scorer) score(item Item, now time.Time) Item {
	matched := s.matchTopics(item.Title)

	b := Breakdown{
		Recency:    s.recency(item.PublishedAt, now),
		Topic:      s.topic(len(matched)),
		Source:     s.EffectiveWeight(item) * ScoreScale,
		Engagement: s.engagement(item.Engagement),
	}

	w := s.cfg.Weights
	item.Score = w.Recency*b.Recency + w.Topic*b.Topic + w.Source*b.Source + w.Engagement*b.Engagement
	item.Breakdown = b
	item.TopicsMatched = matched
	item.scored = true
	return item
}

// EffectiveWeight returns the configured override for the item's source or
// its own weight, clamped to [0,1].
func (s *Scorer) EffectiveWeight(item Item) float64 {
	if w, ok := s.cfg.SourceWeights[item.SourceName]; ok {
		return clamp(w, 0, 1)
	}
	return clamp(item.SourceWeight, 0, 1)
}

func (s *Scorer) recency(published *time.Time, now time.Time) float64 {
	if published == nil {
		return s.cfg.NeutralRecency
	}

	age := now.Sub(*published)
	if age <= 0 {
		return ScoreScale
	}
	if s.cfg.RecencyWindow <= 0 || age >= s.cfg.RecencyWindow {
		return s.cfg.RecencyFloor
	}

	fraction := float64(age) / float64(s.cfg.RecencyWindow)
	return ScoreScale - (ScoreScale-s.cfg.RecencyFloor)*fraction
}

func (s *Scorer) topic(matches int) float64 {
	if matches == 0 || s.cfg.TopicSaturation <= 0 {
		return 0
	}
	return math.Min(float64(matches)*ScoreScale/float64(s.cfg.TopicSaturation), ScoreScale)
}

func (s *Scorer) engagement(e *int) float64 {
	if e == nil || *e <= 0 || s.cfg.EngagementSaturation <= 0 {
		return 0
	}
	v := ScoreScale * math.Log1p(float64(*e)) / math.Log1p(float64(s.cfg.EngagementSaturation))
	return math.Min(v, ScoreScale)
}

// matchTopics returns configured topics whose words appear consecutively in
// the title, in configuration order.
func (s *Scorer) matchTopics(title string) []string {
	words := strings.Fields(TitleFingerprint(title))
	if len(words) == 0 {
		return nil
	}

	var matched []string
	for _, t := range s.topics {
		if containsSequence(words, t.tokens) {
			matched = append(matched, t.name)
		}
	}
	return matched
}

func containsSequence(words, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(seq) <= len(words); i++ {
		for j, tok := range seq {
			if words[i+j] != tok {
				continue outer
			}
		}
		return true
	}
	return false
}
