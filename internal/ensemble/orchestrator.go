// Package ensemble orchestrates normalization, CAMP scoring, the model pool
// and verdict mapping into a single prediction.
package ensemble

import (
	"context"
	"log/slog"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/ZanzyTHEbar/flash/internal/camp"
	apperrors "github.com/ZanzyTHEbar/flash/internal/errors"
	"github.com/ZanzyTHEbar/flash/internal/features"
	"github.com/ZanzyTHEbar/flash/internal/verdict"
)

// ModelPool is the subset of models.Pool the orchestrator depends on.
type ModelPool interface {
	IDs() []string
	PredictAll(ctx context.Context, v features.Vector, scores camp.Scores) map[string]float64
}

// Orchestrator is built once and invoked per request. It holds no mutable
// state and is safe for concurrent use.
type Orchestrator struct {
	cfg        Config
	weights    map[string]float64
	pool       ModelPool
	normalizer *features.Normalizer
	scorer     *camp.Scorer
	mapper     *verdict.Mapper
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNormalizer replaces the default feature normalizer.
func WithNormalizer(n *features.Normalizer) Option {
	return func(o *Orchestrator) { o.normalizer = n }
}

// WithScorer replaces the default CAMP scorer.
func WithScorer(s *camp.Scorer) Option {
	return func(o *Orchestrator) { o.scorer = s }
}

// WithMapper replaces the default verdict mapper.
func WithMapper(m *verdict.Mapper) Option {
	return func(o *Orchestrator) { o.mapper = m }
}

// New validates the configuration against the pool and builds an
// orchestrator. A nil pool is treated as empty.
func New(cfg Config, pool ModelPool, opts ...Option) (*Orchestrator, error) {
	var registered []string
	if pool != nil {
		registered = pool.IDs()
	}

	weights, err := cfg.validate(registered)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:     cfg,
		weights: weights,
		pool:    pool,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.normalizer == nil {
		o.normalizer = features.NewNormalizer(features.WithLogger(o.logger))
	}
	if o.scorer == nil {
		o.scorer = camp.NewScorer()
	}
	if o.mapper == nil {
		o.mapper = verdict.Default()
	}
	return o, nil
}

// Mode is the configured prediction mode.
func (o *Orchestrator) Mode() Mode { return o.cfg.Mode }

// Weights returns the weight table normalized over CAMP and the registered models.
func (o *Orchestrator) Weights() map[string]float64 {
	out := make(map[string]float64, len(o.weights))
	for k, v := range o.weights {
		out[k] = v
	}
	return out
}

// Normalize exposes the feature normalizer.
func (o *Orchestrator) Normalize(raw map[string]any) features.Vector {
	return o.normalizer.Normalize(raw)
}

// Predict runs the full pipeline. Errors are returned only for structural
// problems; model failures degrade the result instead.
func (o *Orchestrator) Predict(ctx context.Context, raw map[string]any) (Result, error) {
	return o.predict(ctx, raw, o.cfg.Mode)
}

// PredictCAMP produces a CAMP-only prediction without consulting the models.
func (o *Orchestrator) PredictCAMP(ctx context.Context, raw map[string]any) (Result, error) {
	return o.predict(ctx, raw, ModeCAMPOnly)
}

func (o *Orchestrator) predict(ctx context.Context, raw map[string]any, mode Mode) (Result, error) {
	if raw == nil {
		return Result{}, apperrors.NewValidationError("prediction input must be a JSON object")
	}

	v := o.normalizer.Normalize(raw)
	scores := o.scorer.Score(v)

	predictions := map[string]float64{}
	if mode == ModeEnsemble && o.pool != nil {
		predictions = o.pool.PredictAll(ctx, v, scores)
	}

	res := Result{
		CAMP:             scores,
		PillarScores:     scores.Map(),
		ModelPredictions: predictions,
		Mode:             mode,
		FundingStage:     v.Stage(),
		Sector:           v.Sector(),
	}

	if len(predictions) == 0 {
		res.Degraded = true
		res.SuccessProbability = clip(scores.Overall, o.cfg.Floor, o.cfg.Ceiling)
		res.Confidence = o.cfg.DegradedConfidence
		res.ModelAgreement = 0
		res.WeightsUsed = map[string]float64{CAMPComponent: 1}
		if mode == ModeEnsemble {
			o.logger.Warn("no model predictions available, using CAMP-only estimate",
				"registered_models", len(o.weights)-1)
		}
	} else {
		probability, used, err := o.combine(scores.Overall, predictions)
		if err != nil {
			return Result{}, err
		}
		res.SuccessProbability = probability
		res.WeightsUsed = used
		res.Confidence, res.ModelAgreement = o.agreement(predictions)
	}

	// Agreement is unmeasured without models; degraded confidence already
	// carries the uncertainty.
	if res.Degraded {
		res.Verdict, res.VerdictStrength = o.mapper.Map(res.SuccessProbability)
	} else {
		res.Verdict, res.VerdictStrength = o.mapper.MapWithAgreement(res.SuccessProbability, res.ModelAgreement)
	}
	res.RiskLevel = o.mapper.RiskLevel(res.SuccessProbability)

	ins := buildInsights(v, scores, predictions, res, o.cfg)
	res.RiskFactors = ins.risks
	res.GrowthIndicators = ins.growth
	res.KeyInsights = ins.insights
	res.Recommendations = ins.recommendations

	return res, nil
}

// combine renormalizes the weights over the present components and returns
// the clipped weighted probability.
func (o *Orchestrator) combine(campScore float64, predictions map[string]float64) (float64, map[string]float64, error) {
	values := map[string]float64{CAMPComponent: campScore}
	for id, p := range predictions {
		if _, ok := o.weights[id]; !ok {
			o.logger.Warn("ignoring prediction from unweighted model", "model_id", id)
			continue
		}
		values[id] = p
	}

	present := sortedKeys(values)
	used, err := renormalize(o.weights, present)
	if err != nil {
		return 0, nil, err
	}

	probability := 0.0
	for _, id := range present {
		probability += used[id] * values[id]
	}
	return clip(probability, o.cfg.Floor, o.cfg.Ceiling), used, nil
}

// agreement derives confidence and model agreement from the population
// standard deviation of the model probabilities.
func (o *Orchestrator) agreement(predictions map[string]float64) (confidence, agreement float64) {
	if len(predictions) < 2 {
		return o.cfg.SingleModelConfidence, o.cfg.SingleModelConfidence
	}

	data := make(stats.Float64Data, 0, len(predictions))
	for _, id := range sortedKeys(predictions) {
		data = append(data, predictions[id])
	}

	std, err := stats.StandardDeviationPopulation(data)
	if err != nil || math.IsNaN(std) {
		return o.cfg.SingleModelConfidence, o.cfg.SingleModelConfidence
	}

	value := clip(1-2*std, 0, 1)
	return value, value
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
