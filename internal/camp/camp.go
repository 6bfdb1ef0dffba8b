// Package camp computes the deterministic Capital / Advantage / Market /
// People composite score from a normalized feature vector.
package camp

import (
	"github.com/ZanzyTHEbar/flash/internal/features"
)

// Pillar names one of the four CAMP dimensions.
type Pillar string

const (
	Capital   Pillar = "capital"
	Advantage Pillar = "advantage"
	Market    Pillar = "market"
	People    Pillar = "people"
)

// Pillars lists the dimensions in canonical order.
var Pillars = []Pillar{Capital, Advantage, Market, People}

// EmptyPillarScore is used when no rule applies to a pillar.
const EmptyPillarScore = 0.3

// Scores holds the four pillar scores and their aggregates, all in [0,1].
type Scores struct {
	Capital   float64 `json:"capital"`
	Advantage float64 `json:"advantage"`
	Market    float64 `json:"market"`
	People    float64 `json:"people"`
	Mean      float64 `json:"mean"`
	// Overall equals Mean unless stage weighting is enabled.
	Overall float64 `json:"overall"`
}

// Pillar returns the score of one dimension.
func (s Scores) Pillar(p Pillar) float64 {
	switch p {
	case Capital:
		return s.Capital
	case Advantage:
		return s.Advantage
	case Market:
		return s.Market
	case People:
		return s.People
	default:
		return 0
	}
}

// Map returns the pillar scores keyed by pillar name.
func (s Scores) Map() map[string]float64 {
	return map[string]float64{
		string(Capital):   s.Capital,
		string(Advantage): s.Advantage,
		string(Market):    s.Market,
		string(People):    s.People,
	}
}

// Weakest returns the lowest scoring pillar. Ties resolve in canonical order.
func (s Scores) Weakest() (Pillar, float64) {
	best, value := Pillars[0], s.Pillar(Pillars[0])
	for _, p := range Pillars[1:] {
		if x := s.Pillar(p); x < value {
			best, value = p, x
		}
	}
	return best, value
}

// Strongest returns the highest scoring pillar. Ties resolve in canonical order.
func (s Scores) Strongest() (Pillar, float64) {
	best, value := Pillars[0], s.Pillar(Pillars[0])
	for _, p := range Pillars[1:] {
		if x := s.Pillar(p); x > value {
			best, value = p, x
		}
	}
	return best, value
}

// Weights are per-pillar weights for the stage-weighted Overall score.
type Weights map[Pillar]float64

// DefaultStageWeights favour people early and capital/market later.
func DefaultStageWeights() map[string]Weights {
	return map[string]Weights{
		"pre_seed": {People: 0.40, Advantage: 0.30, Market: 0.20, Capital: 0.10},
		"seed":     {People: 0.35, Advantage: 0.25, Market: 0.20, Capital: 0.20},
		"series_a": {People: 0.25, Advantage: 0.25, Market: 0.25, Capital: 0.25},
		"series_b": {People: 0.20, Advantage: 0.20, Market: 0.30, Capital: 0.30},
		"series_c": {People: 0.15, Advantage: 0.20, Market: 0.30, Capital: 0.35},
		"growth":   {People: 0.15, Advantage: 0.20, Market: 0.30, Capital: 0.35},
	}
}

// Scorer applies the fixed sub-score rules. It holds no mutable state.
type Scorer struct {
	stageWeights map[string]Weights
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithStageWeights enables the stage-weighted Overall score. Stages missing
// from the table, or with non-positive totals, fall back to the mean.
func WithStageWeights(table map[string]Weights) Option {
	return func(s *Scorer) {
		s.stageWeights = table
	}
}

// NewScorer creates a CAMP scorer.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score computes the CAMP scores for a normalized vector.
func (s *Scorer) Score(v features.Vector) Scores {
	sums := make(map[Pillar]float64, len(Pillars))
	counts := make(map[Pillar]int, len(Pillars))
	preRevenue := v.Float(features.RevenueRunRate) <= 0

	for _, r := range rules {
		if r.revenue && preRevenue {
			continue
		}
		sums[r.pillar] += r.score(v)
		counts[r.pillar]++
	}

	pillar := func(p Pillar) float64 {
		if counts[p] == 0 {
			return EmptyPillarScore
		}
		return clip(sums[p]/float64(counts[p]), 0, 1)
	}

	out := Scores{
		Capital:   pillar(Capital),
		Advantage: pillar(Advantage),
		Market:    pillar(Market),
		People:    pillar(People),
	}
	out.Mean = clip((out.Capital+out.Advantage+out.Market+out.People)/4, 0, 1)
	out.Overall = s.overall(out, v.Stage())
	return out
}

func (s *Scorer) overall(scores Scores, stage string) float64 {
	weights, ok := s.stageWeights[stage]
	if !ok {
		return scores.Mean
	}

	total, weighted := 0.0, 0.0
	for _, p := range Pillars {
		w := weights[p]
		if w <= 0 {
			continue
		}
		total += w
		weighted += w * scores.Pillar(p)
	}
	if total <= 0 {
		return scores.Mean
	}
	return clip(weighted/total, 0, 1)
}
