package models

import (
	"github.com/ZanzyTHEbar/flash/internal/camp"
	"github.com/ZanzyTHEbar/flash/internal/features"
)

// Model identifiers.
const (
	DNAAnalyzer   = "dna_analyzer"
	TemporalModel = "temporal_model"
	IndustryModel = "industry_model"
	EnsembleModel = "ensemble_model"
)

// Derived column names.
const (
	ColCAMPCapital     = "camp_capital"
	ColCAMPAdvantage   = "camp_advantage"
	ColCAMPMarket      = "camp_market"
	ColCAMPPeople      = "camp_people"
	ColGrowthMomentum  = "growth_momentum"
	ColEfficiencyTrend = "efficiency_trend"
	ColStageVelocity   = "stage_velocity"
)

// NeutralProbability fills a meta-model slot whose dependency produced nothing.
const NeutralProbability = 0.5

// Input is everything an adapter may draw on for one request.
type Input struct {
	Vector features.Vector
	CAMP   camp.Scores
	// Upstream holds probabilities of models that already ran.
	Upstream map[string]float64
}

// Adapter maps the canonical input onto one model's named columns.
type Adapter interface {
	ID() string
	// Columns names the row produced by Row, in order.
	Columns() []string
	// Dependencies lists the models that must run first. Empty for base models.
	Dependencies() []string
	Row(in Input) []float64
}

type adapter struct {
	id      string
	columns []string
	deps    []string
	build   func(Input) []float64
}

func (a *adapter) ID() string { return a.id }

func (a *adapter) Columns() []string { return append([]string(nil), a.columns...) }

func (a *adapter) Dependencies() []string { return append([]string(nil), a.deps...) }

func (a *adapter) Row(in Input) []float64 { return a.build(in) }

// NewDNAAdapter appends the four CAMP pillar scores to the canonical row (49).
func NewDNAAdapter() Adapter {
	columns := append(features.Names(), ColCAMPCapital, ColCAMPAdvantage, ColCAMPMarket, ColCAMPPeople)
	return &adapter{
		id:      DNAAnalyzer,
		columns: columns,
		build: func(in Input) []float64 {
			return append(in.Vector.Encoded(),
				in.CAMP.Capital, in.CAMP.Advantage, in.CAMP.Market, in.CAMP.People)
		},
	}
}

// NewTemporalAdapter appends three derived momentum columns (48).
func NewTemporalAdapter() Adapter {
	columns := append(features.Names(), ColGrowthMomentum, ColEfficiencyTrend, ColStageVelocity)
	return &adapter{
		id:      TemporalModel,
		columns: columns,
		build: func(in Input) []float64 {
			return append(in.Vector.Encoded(), TemporalFeatures(in.Vector)...)
		},
	}
}

// TemporalFeatures computes growth momentum, efficiency trend and stage
// velocity.
func TemporalFeatures(v features.Vector) []float64 {
	momentum := v.Float(features.RevenueGrowthRate) * v.Float(features.UserGrowthRate) / 100
	efficiency := 1 / (1 + v.Float(features.BurnMultiple))
	velocity := float64(features.StageOrdinal(v.Stage()))
	return []float64{momentum, efficiency, velocity}
}

// NewIndustryAdapter passes the 45 label-encoded canonical features through.
func NewIndustryAdapter() Adapter {
	return &adapter{
		id:      IndustryModel,
		columns: features.Names(),
		build: func(in Input) []float64 {
			return in.Vector.Encoded()
		},
	}
}

// NewEnsembleAdapter feeds the three base probabilities to the meta-learner.
// Missing dependencies are filled with NeutralProbability.
func NewEnsembleAdapter() Adapter {
	deps := []string{DNAAnalyzer, TemporalModel, IndustryModel}
	return &adapter{
		id:      EnsembleModel,
		columns: deps,
		deps:    deps,
		build: func(in Input) []float64 {
			row := make([]float64, len(deps))
			for i, id := range deps {
				p, ok := in.Upstream[id]
				if !ok {
					p = NeutralProbability
				}
				row[i] = p
			}
			return row
		},
	}
}

// AdapterFor returns the built-in adapter for a model id.
func AdapterFor(id string) (Adapter, bool) {
	switch id {
	case DNAAnalyzer:
		return NewDNAAdapter(), true
	case TemporalModel:
		return NewTemporalAdapter(), true
	case IndustryModel:
		return NewIndustryAdapter(), true
	case EnsembleModel:
		return NewEnsembleAdapter(), true
	default:
		return nil, false
	}
}

// KnownModels lists the built-in model ids, base models first.
func KnownModels() []string {
	return []string{DNAAnalyzer, TemporalModel, IndustryModel, EnsembleModel}
}
