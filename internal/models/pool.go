package models

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/flash/internal/camp"
	apperrors "github.com/ZanzyTHEbar/flash/internal/errors"
	"github.com/ZanzyTHEbar/flash/internal/features"
)

// HealthRecorder observes per-model outcomes. It never influences scoring.
type HealthRecorder interface {
	RecordSuccess(modelID string, latency time.Duration)
	RecordFailure(modelID string, err error)
}

// MultiRecorder fans outcomes out to several recorders.
type MultiRecorder []HealthRecorder

func (m MultiRecorder) RecordSuccess(modelID string, latency time.Duration) {
	for _, r := range m {
		if r != nil {
			r.RecordSuccess(modelID, latency)
		}
	}
}

func (m MultiRecorder) RecordFailure(modelID string, err error) {
	for _, r := range m {
		if r != nil {
			r.RecordFailure(modelID, err)
		}
	}
}

// Pool is the registry of models. Models are registered at startup; after
// that the pool is read-only and safe for concurrent PredictAll calls.
type Pool struct {
	models      []*Model
	byID        map[string]*Model
	logger      *slog.Logger
	health      HealthRecorder
	parallelism int
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolLogger sets the logger used for model failures.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithHealthRecorder attaches a health observer.
func WithHealthRecorder(r HealthRecorder) PoolOption {
	return func(p *Pool) { p.health = r }
}

// WithParallelism bounds concurrent base-model calls. Zero or less means
// unbounded.
func WithParallelism(n int) PoolOption {
	return func(p *Pool) { p.parallelism = n }
}

// NewPool creates an empty pool.
func NewPool(opts ...PoolOption) *Pool {
	p := &Pool{
		byID:   make(map[string]*Model),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds a model. Duplicate ids are a configuration error.
func (p *Pool) Register(m *Model) error {
	if m == nil {
		return apperrors.NewConfigurationError("cannot register a nil model", nil)
	}
	if _, exists := p.byID[m.ID()]; exists {
		return apperrors.NewConfigurationError(fmt.Sprintf("model %s registered twice", m.ID()), nil)
	}
	p.models = append(p.models, m)
	p.byID[m.ID()] = m
	return nil
}

// IDs returns the registered model ids in registration order.
func (p *Pool) IDs() []string {
	ids := make([]string, len(p.models))
	for i, m := range p.models {
		ids[i] = m.ID()
	}
	return ids
}

// Len is the number of registered models.
func (p *Pool) Len() int { return len(p.models) }

// Models describes the registered models.
func (p *Pool) Models() []Info {
	out := make([]Info, len(p.models))
	for i, m := range p.models {
		out[i] = m.Info()
	}
	return out
}

// Probe runs one model on the stage-default input of an empty startup. It
// bypasses the health recorder so probes do not skew request statistics.
func (p *Pool) Probe(ctx context.Context, id string) error {
	m, ok := p.byID[id]
	if !ok {
		return apperrors.NewValidationError(fmt.Sprintf("unknown model %s", id))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v := features.NewNormalizer(features.WithLogger(p.logger)).Normalize(map[string]any{})
	in := Input{Vector: v, CAMP: camp.NewScorer().Score(v), Upstream: map[string]float64{}}
	_, err := m.Predict(in)
	return err
}

// PredictAll runs every registered model and returns only the successful
// probabilities. Base models run concurrently; models with dependencies run
// afterwards in registration order. A cancelled context marks models that
// have not started as unavailable.
func (p *Pool) PredictAll(ctx context.Context, v features.Vector, scores camp.Scores) map[string]float64 {
	results := make(map[string]float64, len(p.models))
	if len(p.models) == 0 {
		return results
	}

	var (
		mu   sync.Mutex
		base []*Model
		meta []*Model
	)
	for _, m := range p.models {
		if len(m.Dependencies()) == 0 {
			base = append(base, m)
		} else {
			meta = append(meta, m)
		}
	}

	var g errgroup.Group
	if p.parallelism > 0 {
		g.SetLimit(p.parallelism)
	}
	for _, m := range base {
		g.Go(func() error {
			prob, ok := p.run(ctx, m, Input{Vector: v, CAMP: scores})
			if ok {
				mu.Lock()
				results[m.ID()] = prob
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, m := range meta {
		upstream := make(map[string]float64, len(results))
		for id, prob := range results {
			upstream[id] = prob
		}
		if prob, ok := p.run(ctx, m, Input{Vector: v, CAMP: scores, Upstream: upstream}); ok {
			results[m.ID()] = prob
		}
	}

	return results
}

func (p *Pool) run(ctx context.Context, m *Model, in Input) (float64, bool) {
	if err := ctx.Err(); err != nil {
		p.fail(m.ID(), fmt.Errorf("not started: %w", err))
		return 0, false
	}

	start := time.Now()
	prob, err := m.Predict(in)
	if err != nil {
		p.fail(m.ID(), err)
		return 0, false
	}

	if p.health != nil {
		p.health.RecordSuccess(m.ID(), time.Since(start))
	}
	return prob, true
}

func (p *Pool) fail(modelID string, err error) {
	p.logger.Warn("model prediction unavailable", "model_id", modelID, "error", err)
	if p.health != nil {
		p.health.RecordFailure(modelID, err)
	}
}
