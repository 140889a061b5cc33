package news

import (
	"fmt"
	"math"
	"time"
)

// Params carries every tunable of a pipeline run.
type Params struct {
	Now            time.Time
	Cap            int
	FuzzyThreshold float64
	FuzzyLimit     int
	Score          ScoreConfig
}

func DefaultParams(now time.Time) Params {
	return Params{
		Now:            now,
		Cap:            30,
		FuzzyThreshold: DefaultFuzzyThreshold,
		FuzzyLimit:     DefaultFuzzyLimit,
		Score:          DefaultScoreConfig(),
	}
}

func (p Params) Validate() error {
	if p.Cap <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCap, p.Cap)
	}
	if p.Now.IsZero() {
		return fmt.Errorf("%w: reference time is not set", ErrInvalidParams)
	}
	if !(p.FuzzyThreshold > 0 && p.FuzzyThreshold <= 1) {
		return fmt.Errorf("%w: fuzzy threshold %v outside (0, 1]", ErrInvalidParams, p.FuzzyThreshold)
	}
	if p.FuzzyLimit < 0 {
		return fmt.Errorf("%w: fuzzy limit %d is negative", ErrInvalidParams, p.FuzzyLimit)
	}

	s := p.Score
	w := s.Weights
	if !finite(w.Recency, w.Topic, w.Source, w.Engagement, s.RecencyFloor, s.NeutralRecency) {
		return fmt.Errorf("%w: score weights and recency bounds must be finite numbers", ErrInvalidParams)
	}
	for name, weight := range s.SourceWeights {
		if !finite(weight) {
			return fmt.Errorf("%w: source weight for %s is not a finite number", ErrInvalidParams, name)
		}
	}
	if w.Recency < 0 || w.Topic < 0 || w.Source < 0 || w.Engagement < 0 {
		return fmt.Errorf("%w: score weights must not be negative", ErrInvalidParams)
	}
	if w.Recency+w.Topic+w.Source+w.Engagement == 0 {
		return fmt.Errorf("%w: at least one score weight must be positive", ErrInvalidParams)
	}
	if s.RecencyWindow <= 0 {
		return fmt.Errorf("%w: recency window must be positive", ErrInvalidParams)
	}
	if s.RecencyFloor < 0 || s.RecencyFloor >= ScoreScale {
		return fmt.Errorf("%w: recency floor %v outside [0, %v)", ErrInvalidParams, s.RecencyFloor, ScoreScale)
	}
	if s.NeutralRecency <= s.RecencyFloor || s.NeutralRecency >= ScoreScale {
		return fmt.Errorf("%w: neutral recency %v must lie between floor and maximum", ErrInvalidParams, s.NeutralRecency)
	}
	if s.TopicSaturation <= 0 {
		return fmt.Errorf("%w: topic saturation must be positive", ErrInvalidParams)
	}
	if s.EngagementSaturation <= 0 {
		return fmt.Errorf("%w: engagement saturation must be positive", ErrInvalidParams)
	}

	return nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Run canonicalizes, deduplicates, scores and ranks raw items.
func Run(raw []Item, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		Candidates: []Item{},
		Stats:      Stats{RawIn: len(raw)},
	}
	if len(raw) == 0 {
		return result, nil
	}

	kept, rejected := NewCanonicalizer().Run(raw)
	result.Rejected = rejected
	result.Stats.Rejected = len(rejected)

	deduped := NewDeduplicator(params.FuzzyThreshold, params.FuzzyLimit).Run(kept)
	result.Duplicates = deduped.Duplicates
	result.Stats.DuplicatesRemoved = len(deduped.Duplicates)
	result.Stats.FuzzySkipped = deduped.FuzzySkipped

	scored := NewScorer(params.Score).Run(deduped.Items, params.Now)
	result.Stats.Scored = len(scored)

	if len(scored) == 0 {
		return result, nil
	}

	ranked, err := NewRanker().Run(scored, params.Cap)
	if err != nil {
		return nil, fmt.Errorf("failed to rank items: %w", err)
	}

	result.Candidates = ranked
	result.Stats.Final = len(ranked)

	return result, nil
}
