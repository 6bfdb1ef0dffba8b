// Package engine assembles the prediction pipeline from configuration.
package engine

import (
	"log/slog"

	"github.com/ZanzyTHEbar/flash/internal/camp"
	"github.com/ZanzyTHEbar/flash/internal/config"
	"github.com/ZanzyTHEbar/flash/internal/ensemble"
	"github.com/ZanzyTHEbar/flash/internal/features"
	"github.com/ZanzyTHEbar/flash/internal/models"
	"github.com/ZanzyTHEbar/flash/internal/verdict"
)

// Engine is a loaded model pool and the orchestrator built over it.
type Engine struct {
	Pool         *models.Pool
	Orchestrator *ensemble.Orchestrator
}

// New validates cfg, loads the enabled model artifacts and builds the
// orchestrator. Recorders observe per-model outcomes.
func New(cfg *config.Config, logger *slog.Logger, recorders ...models.HealthRecorder) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mapper, err := verdict.NewMapper(cfg.VerdictConfig())
	if err != nil {
		return nil, err
	}

	opts := []models.PoolOption{
		models.WithPoolLogger(logger),
		models.WithParallelism(cfg.Models.Parallelism),
	}
	switch len(recorders) {
	case 0:
	case 1:
		opts = append(opts, models.WithHealthRecorder(recorders[0]))
	default:
		opts = append(opts, models.WithHealthRecorder(models.MultiRecorder(recorders)))
	}

	pool, err := models.LoadPool(models.NewArtifactStore(cfg.Models.Dir), cfg.Models.Enabled, opts...)
	if err != nil {
		return nil, err
	}

	orchestrator, err := ensemble.New(cfg.EnsembleConfig(), pool,
		ensemble.WithLogger(logger),
		ensemble.WithNormalizer(features.NewNormalizer(features.WithLogger(logger))),
		ensemble.WithScorer(camp.NewScorer(cfg.ScorerOptions()...)),
		ensemble.WithMapper(mapper),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Prediction engine ready",
		"mode", cfg.Ensemble.Mode,
		"models", pool.IDs(),
		"models_dir", cfg.Models.Dir)

	return &Engine{Pool: pool, Orchestrator: orchestrator}, nil
}
