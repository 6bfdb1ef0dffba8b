package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/flash/internal/cache"
	"github.com/ZanzyTHEbar/flash/internal/ensemble"
	apperrors "github.com/ZanzyTHEbar/flash/internal/errors"
	"github.com/ZanzyTHEbar/flash/internal/features"
	"github.com/ZanzyTHEbar/flash/internal/models"
	"github.com/ZanzyTHEbar/flash/internal/resilience"
)

// PredictionResponse wraps a result with per-request identifiers.
type PredictionResponse struct {
	PredictionID string `json:"prediction_id"`
	Timestamp    string `json:"timestamp"`
	Cached       bool   `json:"cached"`
	ensemble.Result
}

// NormalizeResponse is the canonical view of a submitted startup.
type NormalizeResponse struct {
	Features     map[string]any `json:"features"`
	Defaulted    []string       `json:"defaulted"`
	Completeness float64        `json:"completeness"`
	FundingStage string         `json:"funding_stage"`
	Sector       string         `json:"sector"`
}

// FeatureInfo describes one canonical input column.
type FeatureInfo struct {
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Kind       string   `json:"kind"`
	Min        float64  `json:"min"`
	Max        float64  `json:"max"`
	Negative   bool     `json:"negative,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Fallback   string   `json:"fallback,omitempty"`
}

// ModelsResponse lists the registered models and the weight table.
type ModelsResponse struct {
	Mode    string             `json:"mode"`
	Weights map[string]float64 `json:"weights"`
	Models  []models.Info      `json:"models"`
}

// handleHealth reports service status and per-model health.
//
//	@Summary	Service health
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/health [get]
func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	level := resilience.LevelNormal
	var modelHealth map[string]resilience.ModelHealth
	available := s.modelIDs()
	if s.health != nil {
		level = s.health.OverallLevel()
		modelHealth = s.health.GetAllModelHealth()
		available = make([]string, 0, len(available))
		for _, id := range s.modelIDs() {
			if s.health.IsModelAvailable(id) {
				available = append(available, id)
			}
		}
	}
	if level >= resilience.LevelCritical {
		status = "degraded"
	}

	// Predictions still succeed on the CAMP fallback, so the service stays
	// ready even when every model is in emergency.
	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"level":          level,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"version":        Version,
		"uptime_seconds": time.Since(s.started).Seconds(),
		"mode":           s.orchestrator.Mode(),
		"models":           s.modelIDs(),
		"available_models": available,
		"model_health":     modelHealth,
	})
}

// handleResetModel clears a model's health window, returning it to normal.
//
//	@Summary	Reset model health
//	@Tags		system
//	@Produce	json
//	@Param		id	path		string	true	"Model id"
//	@Success	200	{object}	resilience.ModelHealth
//	@Failure	404	{object}	map[string]interface{}
//	@Router		/health/models/{id} [delete]
func (s *Server) handleResetModel(c *gin.Context) {
	id := c.Param("id")
	if s.health == nil {
		_ = c.Error(apperrors.NewNotFoundError("model health tracking is disabled"))
		return
	}
	if _, ok := s.health.GetModelHealth(id); !ok {
		_ = c.Error(apperrors.NewNotFoundError("unknown model " + id))
		return
	}

	s.health.ResetModel(id)
	health, _ := s.health.GetModelHealth(id)
	s.logger.SystemLogger("model_health_reset", id)
	c.JSON(http.StatusOK, health)
}

// handleMetrics returns the in-process counters.
//
//	@Summary	Service metrics
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/metrics [get]
func (s *Server) handleMetrics(c *gin.Context) {
	stats := s.metrics.GetStats()
	if s.compression != nil {
		stats["compression"] = s.compression.Stats()
	}
	c.JSON(http.StatusOK, stats)
}

// handleCacheStats returns response cache statistics.
//
//	@Summary	Response cache statistics
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/cache/stats [get]
func (s *Server) handleCacheStats(c *gin.Context) {
	if s.cache == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	stats := s.cache.Stats()
	stats["enabled"] = true
	c.JSON(http.StatusOK, stats)
}

// handleClearCache drops every cached prediction.
//
//	@Summary	Clear the response cache
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/cache [delete]
func (s *Server) handleClearCache(c *gin.Context) {
	if s.cache == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "cleared": 0})
		return
	}
	cleared := s.cache.Clear()
	s.logger.CacheLogger("clear", "*", false, 0)
	c.JSON(http.StatusOK, gin.H{"enabled": true, "cleared": cleared})
}

// handleFeatures lists the canonical schema in column order.
//
//	@Summary	Canonical feature schema
//	@Tags		prediction
//	@Produce	json
//	@Success	200	{array}	FeatureInfo
//	@Router		/v1/features [get]
func (s *Server) handleFeatures(c *gin.Context) {
	c.JSON(http.StatusOK, featureInfos())
}

func featureInfos() []FeatureInfo {
	schema := features.Schema()
	out := make([]FeatureInfo, len(schema))
	for i, f := range schema {
		out[i] = FeatureInfo{
			Name:       f.Name,
			Group:      string(f.Group),
			Kind:       f.Kind.String(),
			Min:        f.Min,
			Max:        f.Max,
			Negative:   f.Negative,
			Categories: f.Categories,
			Fallback:   f.Fallback,
		}
	}
	return out
}

// handleModels lists the registered models.
//
//	@Summary	Registered models and weights
//	@Tags		prediction
//	@Produce	json
//	@Success	200	{object}	ModelsResponse
//	@Router		/v1/models [get]
func (s *Server) handleModels(c *gin.Context) {
	resp := ModelsResponse{
		Mode:    string(s.orchestrator.Mode()),
		Weights: s.orchestrator.Weights(),
		Models:  []models.Info{},
	}
	if s.pool != nil {
		resp.Models = s.pool.Models()
	}
	c.JSON(http.StatusOK, resp)
}

// handlePredict scores a startup with the configured mode.
//
//	@Summary	Predict startup success
//	@Tags		prediction
//	@Accept		json
//	@Produce	json
//	@Param		startup	body		map[string]interface{}	true	"Flat map of startup metrics"
//	@Success	200		{object}	PredictionResponse
//	@Failure	400		{object}	map[string]interface{}
//	@Failure	415		{object}	map[string]interface{}
//	@Router		/v1/predict [post]
func (s *Server) handlePredict(c *gin.Context) {
	s.predict(c, s.orchestrator.Mode(), s.orchestrator.Predict)
}

// handlePredictCAMP scores a startup from the CAMP pillars alone.
//
//	@Summary	CAMP-only prediction
//	@Tags		prediction
//	@Accept		json
//	@Produce	json
//	@Param		startup	body		map[string]interface{}	true	"Flat map of startup metrics"
//	@Success	200		{object}	PredictionResponse
//	@Failure	400		{object}	map[string]interface{}
//	@Router		/v1/predict/camp [post]
func (s *Server) handlePredictCAMP(c *gin.Context) {
	s.predict(c, ensemble.ModeCAMPOnly, s.orchestrator.PredictCAMP)
}

type predictFunc func(ctx context.Context, raw map[string]any) (ensemble.Result, error)

func (s *Server) predict(c *gin.Context, mode ensemble.Mode, run predictFunc) {
	start := time.Now()

	raw, err := bindStartup(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, cached, err := s.cachedPredict(c.Request.Context(), mode, raw, run)
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := PredictionResponse{
		PredictionID: uuid.NewString(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Cached:       cached,
		Result:       result,
	}

	s.metrics.RecordPrediction(string(result.Verdict), result.Degraded)
	s.logger.PredictionLogger(resp.PredictionID, result.FundingStage, result.Sector, string(result.Verdict),
		result.SuccessProbability, result.Confidence, result.Degraded, time.Since(start))

	if cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, resp)
}

// cachedPredict memoizes complete results. A result missing any registered
// model reflects a transient failure and is recomputed next time.
func (s *Server) cachedPredict(ctx context.Context, mode ensemble.Mode, raw map[string]any, run predictFunc) (ensemble.Result, bool, error) {
	compute := func() (ensemble.Result, error) { return run(ctx, raw) }
	if s.cache == nil {
		result, err := compute()
		return result, false, err
	}

	key, err := cache.Key(string(mode), raw)
	if err != nil {
		result, err := compute()
		return result, false, err
	}

	result, hit, err := cache.RememberIf(s.cache, key, compute, s.complete)
	if err == nil {
		s.logger.CacheLogger(string(mode), key, hit, s.cache.Size())
	}
	return result, hit, err
}

func (s *Server) complete(res ensemble.Result) bool {
	if res.Mode == ensemble.ModeCAMPOnly {
		return true
	}
	return len(res.ModelPredictions) == len(s.modelIDs())
}

// handleNormalize returns the normalized feature vector.
//
//	@Summary	Normalize startup metrics
//	@Tags		prediction
//	@Accept		json
//	@Produce	json
//	@Param		startup	body		map[string]interface{}	true	"Flat map of startup metrics"
//	@Success	200		{object}	NormalizeResponse
//	@Failure	400		{object}	map[string]interface{}
//	@Router		/v1/normalize [post]
func (s *Server) handleNormalize(c *gin.Context) {
	raw, err := bindStartup(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	v := s.orchestrator.Normalize(raw)
	defaulted := v.Defaulted()
	if defaulted == nil {
		defaulted = []string{}
	}
	c.JSON(http.StatusOK, NormalizeResponse{
		Features:     v.Map(),
		Defaulted:    defaulted,
		Completeness: v.Completeness(),
		FundingStage: v.Stage(),
		Sector:       v.Sector(),
	})
}

func (s *Server) modelIDs() []string {
	if s.pool == nil {
		return []string{}
	}
	return s.pool.IDs()
}

// bindStartup decodes a flat JSON object, keeping numbers as json.Number so
// the normalizer sees the submitted precision.
func bindStartup(c *gin.Context) (map[string]any, error) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			appErr := apperrors.NewValidationError("request body too large", err.Error())
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			return nil, appErr
		case errors.Is(err, io.EOF):
			return nil, apperrors.NewValidationError("request body is empty")
		default:
			return nil, apperrors.NewValidationError("request body must be a JSON object", err.Error())
		}
	}
	if raw == nil {
		return nil, apperrors.NewValidationError("request body must be a JSON object")
	}
	return raw, nil
}
