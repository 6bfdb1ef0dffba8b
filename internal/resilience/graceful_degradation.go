package resilience

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/flash/internal/errors"
	"github.com/ZanzyTHEbar/flash/internal/models"
)

// DegradationLevel represents the current degradation state
type DegradationLevel int

const (
	LevelNormal DegradationLevel = iota
	LevelDegraded
	LevelCritical
	LevelEmergency
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelDegraded:
		return "degraded"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// MarshalText renders the level by name in JSON and logs.
func (l DegradationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// DegradationConfig holds configuration for graceful degradation
type DegradationConfig struct {
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	HealthCheckTimeout  time.Duration `json:"health_check_timeout"`
	DegradedThreshold   float64       `json:"degraded_threshold"`  // Error rate threshold (0.0-1.0)
	CriticalThreshold   float64       `json:"critical_threshold"`  // Error rate threshold (0.0-1.0)
	EmergencyThreshold  float64       `json:"emergency_threshold"` // Error rate threshold (0.0-1.0)
	// WindowSize is the number of recent outcomes the error rate covers.
	WindowSize int `json:"window_size"`
	// MaxDegradedDuration escalates a model stuck in the degraded level.
	MaxDegradedDuration time.Duration `json:"max_degraded_duration"`
}

// DefaultDegradationConfig returns sensible defaults
func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		HealthCheckInterval: 30 * time.Second,
		HealthCheckTimeout:  5 * time.Second,
		DegradedThreshold:   0.1,
		CriticalThreshold:   0.25,
		EmergencyThreshold:  0.5,
		WindowSize:          100,
		MaxDegradedDuration: 10 * time.Minute,
	}
}

// ModelHealth is a snapshot of one model's recent outcomes.
type ModelHealth struct {
	ModelID       string           `json:"model_id"`
	Level         DegradationLevel `json:"level"`
	ErrorRate     float64          `json:"error_rate"`
	TotalRequests int64            `json:"total_requests"`
	ErrorCount    int64            `json:"error_count"`
	LastError     string           `json:"last_error,omitempty"`
	LastErrorTime *time.Time       `json:"last_error_time,omitempty"`
	DegradedSince *time.Time       `json:"degraded_since,omitempty"`
	StatusMessage string           `json:"status_message"`
}

type modelState struct {
	health  ModelHealth
	window  []bool // true marks a failure
	next    int
	filled  int
	failing int
}

// HealthCheckFunc represents a function that checks model health
type HealthCheckFunc func(ctx context.Context) error

// DegradationManager tracks per-model error rates from live predictions and
// periodic probes. It observes outcomes only and never changes scoring.
type DegradationManager struct {
	config       DegradationConfig
	models       map[string]*modelState
	healthChecks map[string]HealthCheckFunc
	logger       *slog.Logger
	now          func() time.Time
	mutex        sync.RWMutex
}

var _ models.HealthRecorder = (*DegradationManager)(nil)

// NewDegradationManager creates a new degradation manager
func NewDegradationManager(config DegradationConfig, logger *slog.Logger) *DegradationManager {
	if config.WindowSize <= 0 {
		config.WindowSize = DefaultDegradationConfig().WindowSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DegradationManager{
		config:       config,
		models:       make(map[string]*modelState),
		healthChecks: make(map[string]HealthCheckFunc),
		logger:       logger,
		now:          time.Now,
	}
}

// RegisterModel registers a model with an optional health check.
func (dm *DegradationManager) RegisterModel(modelID string, healthCheck HealthCheckFunc) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	dm.models[modelID] = &modelState{
		health: ModelHealth{
			ModelID:       modelID,
			Level:         LevelNormal,
			StatusMessage: "Model is healthy",
		},
		window: make([]bool, dm.config.WindowSize),
	}
	if healthCheck != nil {
		dm.healthChecks[modelID] = healthCheck
	}

	dm.logger.Info("Registered model for degradation management", "model_id", modelID)
}

// RecordSuccess records a model that produced a probability.
func (dm *DegradationManager) RecordSuccess(modelID string, _ time.Duration) {
	dm.record(modelID, nil)
}

// RecordFailure records a model that was unavailable.
func (dm *DegradationManager) RecordFailure(modelID string, err error) {
	if err == nil {
		err = errors.NewInternalError("model request failed", nil)
	}
	dm.record(modelID, err)
}

func (dm *DegradationManager) record(modelID string, err error) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	state, exists := dm.models[modelID]
	if !exists {
		return
	}

	failed := err != nil
	if state.filled == len(state.window) {
		if state.window[state.next] {
			state.failing--
		}
	} else {
		state.filled++
	}
	state.window[state.next] = failed
	state.next = (state.next + 1) % len(state.window)
	if failed {
		state.failing++
	}

	health := &state.health
	health.TotalRequests++
	if failed {
		now := dm.now()
		health.ErrorCount++
		health.LastError = err.Error()
		health.LastErrorTime = &now
	}
	health.ErrorRate = float64(state.failing) / float64(state.filled)

	dm.updateDegradationLevel(health)
}

// updateDegradationLevel updates the degradation level based on current metrics
func (dm *DegradationManager) updateDegradationLevel(health *ModelHealth) {
	oldLevel := health.Level
	now := dm.now()

	var newLevel DegradationLevel
	var statusMessage string

	switch {
	case health.ErrorRate >= dm.config.EmergencyThreshold:
		newLevel = LevelEmergency
		statusMessage = "Model is in emergency state - most recent predictions failed"
	case health.ErrorRate >= dm.config.CriticalThreshold:
		newLevel = LevelCritical
		statusMessage = "Model is in critical state - elevated failure rate"
	case health.ErrorRate >= dm.config.DegradedThreshold:
		newLevel = LevelDegraded
		statusMessage = "Model is degraded - moderate failure rate"
	default:
		newLevel = LevelNormal
		statusMessage = "Model is healthy"
	}

	if newLevel == LevelDegraded && health.DegradedSince != nil &&
		now.Sub(*health.DegradedSince) > dm.config.MaxDegradedDuration {
		newLevel = LevelEmergency
		statusMessage = "Model has been degraded too long - entering emergency state"
	}

	switch {
	case newLevel == LevelDegraded && health.DegradedSince == nil:
		health.DegradedSince = &now
	case newLevel == LevelNormal:
		health.DegradedSince = nil
	}

	health.Level = newLevel
	health.StatusMessage = statusMessage

	if oldLevel != newLevel {
		dm.logger.Warn("Model degradation level changed",
			"model_id", health.ModelID,
			"old_level", oldLevel,
			"new_level", newLevel,
			"error_rate", health.ErrorRate,
			"total_requests", health.TotalRequests,
			"error_count", health.ErrorCount)
	}
}

// GetModelHealth returns the health status of a model
func (dm *DegradationManager) GetModelHealth(modelID string) (ModelHealth, bool) {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	state, exists := dm.models[modelID]
	if !exists {
		return ModelHealth{}, false
	}
	return state.health, true
}

// GetAllModelHealth returns health status for all models
func (dm *DegradationManager) GetAllModelHealth() map[string]ModelHealth {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	result := make(map[string]ModelHealth, len(dm.models))
	for id, state := range dm.models {
		result[id] = state.health
	}
	return result
}

// OverallLevel is the worst level across registered models.
func (dm *DegradationManager) OverallLevel() DegradationLevel {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	level := LevelNormal
	for _, state := range dm.models {
		if state.health.Level > level {
			level = state.health.Level
		}
	}
	return level
}

// IsModelAvailable reports whether a registered model is outside the
// emergency level.
func (dm *DegradationManager) IsModelAvailable(modelID string) bool {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	state, exists := dm.models[modelID]
	if !exists {
		return false
	}
	return state.health.Level != LevelEmergency
}

// RunHealthChecks probes every registered model concurrently and waits for
// the results.
func (dm *DegradationManager) RunHealthChecks(ctx context.Context) {
	dm.mutex.RLock()
	ids := make([]string, 0, len(dm.healthChecks))
	for id := range dm.healthChecks {
		ids = append(ids, id)
	}
	checks := make(map[string]HealthCheckFunc, len(ids))
	for id, check := range dm.healthChecks {
		checks[id] = check
	}
	dm.mutex.RUnlock()
	sort.Strings(ids)

	var g errgroup.Group
	for _, id := range ids {
		check := checks[id]
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, dm.config.HealthCheckTimeout)
			defer cancel()

			if err := errors.SafeExecute(func() error { return check(checkCtx) }); err != nil {
				dm.RecordFailure(id, errors.WrapError(err, "health check failed for model %s", id))
			} else {
				dm.RecordSuccess(id, 0)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// StartHealthChecks runs health checks on every interval until ctx is done.
func (dm *DegradationManager) StartHealthChecks(ctx context.Context) {
	ticker := time.NewTicker(dm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dm.RunHealthChecks(ctx)
		}
	}
}

// ResetModel resets a model's health status
func (dm *DegradationManager) ResetModel(modelID string) {
	dm.mutex.Lock()
	defer dm.mutex.Unlock()

	if state, exists := dm.models[modelID]; exists {
		state.health = ModelHealth{
			ModelID:       modelID,
			Level:         LevelNormal,
			StatusMessage: "Model is healthy",
		}
		state.window = make([]bool, dm.config.WindowSize)
		state.next, state.filled, state.failing = 0, 0, 0

		dm.logger.Info("Model health reset", "model_id", modelID)
	}
}

// GracefulShutdown logs the final status of every model.
func (dm *DegradationManager) GracefulShutdown() {
	dm.mutex.RLock()
	defer dm.mutex.RUnlock()

	dm.logger.Info("Degradation manager shutting down", "models", len(dm.models))
	for id, state := range dm.models {
		dm.logger.Info("Final model status",
			"model_id", id,
			"level", state.health.Level,
			"error_rate", state.health.ErrorRate,
			"total_requests", state.health.TotalRequests,
			"error_count", state.health.ErrorCount)
	}
}
