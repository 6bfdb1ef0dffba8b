package ensemble

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/ZanzyTHEbar/flash/internal/errors"
	"github.com/ZanzyTHEbar/flash/internal/models"
)

// Mode selects how the final probability is produced.
type Mode string

const (
	ModeEnsemble Mode = "ensemble"
	ModeCAMPOnly Mode = "camp_only"
)

// CAMPComponent is the weight-table key of the CAMP score.
const CAMPComponent = "camp"

// weightTolerance bounds the drift of applied weights from 1.
const weightTolerance = 1e-6

// Config is the immutable orchestrator configuration.
type Config struct {
	Mode    Mode
	Weights map[string]float64
	// Floor and Ceiling clip the final probability.
	Floor   float64
	Ceiling float64
	// DegradedConfidence is reported when no model contributed.
	DegradedConfidence float64
	// SingleModelConfidence is reported when agreement cannot be assessed.
	SingleModelConfidence float64
	// LowModelProbability triggers a model-specific risk note.
	LowModelProbability float64
}

// DefaultWeights is the standard component weighting.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		CAMPComponent:        0.15,
		models.DNAAnalyzer:   0.30,
		models.IndustryModel: 0.25,
		models.TemporalModel: 0.20,
		models.EnsembleModel: 0.10,
	}
}

// DefaultConfig returns the standard orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		Mode:                  ModeEnsemble,
		Weights:               DefaultWeights(),
		Floor:                 0.05,
		Ceiling:               0.95,
		DegradedConfidence:    0.3,
		SingleModelConfidence: 0.5,
		LowModelProbability:   0.3,
	}
}

// validate checks the configuration against the registered model ids and
// returns the weight table normalized over CAMP plus those ids.
func (c Config) validate(registered []string) (map[string]float64, error) {
	problems := map[string]string{}

	switch c.Mode {
	case ModeEnsemble, ModeCAMPOnly:
	default:
		problems["ensemble.mode"] = fmt.Sprintf("unknown mode %q", c.Mode)
	}
	if c.Floor < 0 || c.Ceiling > 1 || c.Floor >= c.Ceiling {
		problems["ensemble.floor"] = fmt.Sprintf("floor %.3f and ceiling %.3f must satisfy 0 <= floor < ceiling <= 1", c.Floor, c.Ceiling)
	}
	for name, value := range map[string]float64{
		"ensemble.degraded_confidence":     c.DegradedConfidence,
		"ensemble.single_model_confidence": c.SingleModelConfidence,
		"ensemble.low_model_probability":   c.LowModelProbability,
	} {
		if value < 0 || value > 1 {
			problems[name] = "must be within [0,1]"
		}
	}

	for id, w := range c.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			problems["ensemble.weights."+id] = fmt.Sprintf("invalid weight %v", w)
		}
	}
	if c.Weights[CAMPComponent] <= 0 {
		problems["ensemble.weights.camp"] = "camp weight must be positive"
	}
	for _, id := range registered {
		if _, ok := c.Weights[id]; !ok {
			problems["ensemble.weights."+id] = "registered model has no weight"
		}
	}

	if len(problems) > 0 {
		return nil, apperrors.NewConfigurationErrorWithMap(problems)
	}

	normalized := map[string]float64{CAMPComponent: c.Weights[CAMPComponent]}
	total := c.Weights[CAMPComponent]
	for _, id := range registered {
		normalized[id] = c.Weights[id]
		total += c.Weights[id]
	}
	for id := range normalized {
		normalized[id] /= total
	}
	return normalized, nil
}

// renormalize restricts weights to the present components and rescales them
// to sum to one.
func renormalize(weights map[string]float64, present []string) (map[string]float64, error) {
	total := 0.0
	for _, id := range present {
		total += weights[id]
	}
	if total <= 0 {
		return nil, apperrors.NewInternalError("no positive weight among present components", nil)
	}

	used := make(map[string]float64, len(present))
	sum := 0.0
	for _, id := range present {
		used[id] = weights[id] / total
		sum += used[id]
	}
	if math.Abs(sum-1) > weightTolerance {
		return nil, apperrors.NewInternalError(fmt.Sprintf("applied weights sum to %.9f", sum), nil)
	}
	return used, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
