package api

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ZanzyTHEbar/flash/internal/cache"
	"github.com/ZanzyTHEbar/flash/internal/ensemble"
	"github.com/ZanzyTHEbar/flash/internal/features"
	"github.com/ZanzyTHEbar/flash/internal/middleware"
	"github.com/ZanzyTHEbar/flash/internal/models"
	"github.com/ZanzyTHEbar/flash/internal/monitoring"
	"github.com/ZanzyTHEbar/flash/internal/resilience"
	"github.com/ZanzyTHEbar/flash/internal/security"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

var allModels = []string{models.DNAAnalyzer, models.TemporalModel, models.IndustryModel, models.EnsembleModel}

var sampleStartup = map[string]any{
	"startup_name":              "Acme Robotics",
	features.FundingStage:       "series_a",
	features.Sector:             "saas",
	features.TotalCapitalRaised: "$11,000,000",
	features.RunwayMonths:       20,
	features.BurnMultiple:       1.4,
	features.RevenueRunRate:     3_200_000,
	features.RevenueGrowthRate:  180,
	features.UserGrowthRate:     90,
	features.TeamSize:           42,
	features.PriorExits:         1,
	features.NetworkEffects:     "yes",
}

type testEnv struct {
	server  *Server
	metrics *monitoring.Metrics
	health  *resilience.DegradationManager
	cache   *cache.Cache
}

func newTestEnv(t *testing.T, mutate ...func(*Dependencies)) *testEnv {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := monitoring.NewMetrics()
	health := resilience.NewDegradationManager(resilience.DefaultDegradationConfig(), quiet)
	for _, id := range allModels {
		health.RegisterModel(id, nil)
	}

	pool, err := models.LoadPool(models.NewArtifactStore("../models/testdata"), allModels,
		models.WithPoolLogger(quiet),
		models.WithHealthRecorder(models.MultiRecorder{metrics, health}))
	require.NoError(t, err)

	orchestrator, err := ensemble.New(ensemble.DefaultConfig(), pool, ensemble.WithLogger(quiet))
	require.NoError(t, err)

	responseCache := cache.NewCache(time.Minute, cache.WithMetrics(metrics), cache.WithLogger(quiet))

	deps := Dependencies{
		Orchestrator:   orchestrator,
		Pool:           pool,
		Metrics:        metrics,
		Logger:         monitoring.NewLogger(slog.LevelError, "json", io.Discard),
		Health:         health,
		Cache:          responseCache,
		Security:       security.DefaultSecurityConfig(),
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	return &testEnv{
		server:  NewServer(deps),
		metrics: metrics,
		health:  health,
		cache:   responseCache,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "normal", body["level"])
	assert.Equal(t, "ensemble", body["mode"])
	assert.Len(t, body["models"], len(allModels))
	assert.Contains(t, body["model_health"], models.DNAAnalyzer)
	assert.NotEmpty(t, w.Header().Get(monitoring.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestHealthReportsDegradedModels(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 5; i++ {
		env.health.RecordFailure(models.TemporalModel, assert.AnError)
	}

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code, "CAMP fallback keeps the service ready")

	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "emergency", body["level"])
	assert.Len(t, body["available_models"], len(allModels)-1)
	assert.NotContains(t, body["available_models"], models.TemporalModel)
}

func TestResetModelHealth(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 5; i++ {
		env.health.RecordFailure(models.TemporalModel, assert.AnError)
	}

	w := env.do(t, http.MethodDelete, "/health/models/"+models.TemporalModel, nil)
	require.Equal(t, http.StatusOK, w.Code)
	reset := decode(t, w)
	assert.Equal(t, models.TemporalModel, reset["model_id"])
	assert.Equal(t, "normal", reset["level"])

	body := decode(t, env.do(t, http.MethodGet, "/health", nil))
	assert.Equal(t, "ok", body["status"])
	assert.Len(t, body["available_models"], len(allModels))

	w = env.do(t, http.MethodDelete, "/health/models/oracle", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["category"])
}

func TestFeatures(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/features", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out []FeatureInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, features.NumFeatures)
	assert.Equal(t, features.Names()[0], out[0].Name)
	for _, f := range out {
		assert.NotEmpty(t, f.Kind, f.Name)
	}
}

func TestModels(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/models", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out ModelsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "ensemble", out.Mode)
	assert.Len(t, out.Models, len(allModels))

	total := 0.0
	for _, weight := range out.Weights {
		total += weight
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Contains(t, out.Weights, ensemble.CAMPComponent)
}

func TestPredict(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/predict", sampleStartup)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var out PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.NotEmpty(t, out.PredictionID)
	assert.NotEmpty(t, out.Timestamp)
	assert.False(t, out.Cached)
	assert.False(t, out.Degraded)
	assert.Len(t, out.ModelPredictions, len(allModels))
	assert.GreaterOrEqual(t, out.SuccessProbability, 0.05)
	assert.LessOrEqual(t, out.SuccessProbability, 0.95)
	assert.NotEmpty(t, out.Verdict)
	assert.Equal(t, "series_a", out.FundingStage)

	stats := env.metrics.GetStats()
	assert.Equal(t, int64(1), stats["predictions"])
}

func TestPredictIsCachedWithFreshEnvelope(t *testing.T) {
	env := newTestEnv(t)

	first := env.do(t, http.MethodPost, "/v1/predict", sampleStartup)
	second := env.do(t, http.MethodPost, "/v1/predict", sampleStartup)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	var a, b PredictionResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.True(t, b.Cached)
	assert.NotEqual(t, a.PredictionID, b.PredictionID)
	assert.InDelta(t, a.SuccessProbability, b.SuccessProbability, 1e-12)
	assert.Equal(t, a.Verdict, b.Verdict)
	assert.Equal(t, 1, env.cache.Size())
}

func TestPredictWithoutCache(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.Cache = nil })

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/v1/predict", sampleStartup)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	}

	w := env.do(t, http.MethodGet, "/cache/stats", nil)
	assert.Equal(t, false, decode(t, w)["enabled"])
}

func TestPredictCAMP(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/predict/camp", sampleStartup)
	require.Equal(t, http.StatusOK, w.Code)

	var out PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Degraded)
	assert.Equal(t, ensemble.ModeCAMPOnly, out.Mode)
	assert.Empty(t, out.ModelPredictions)
	assert.InDelta(t, 0.3, out.Confidence, 1e-12)

	stats := env.metrics.GetStats()
	assert.Equal(t, int64(1), stats["degraded_predictions"])
}

func TestPredictCAMPAndEnsembleUseSeparateCacheEntries(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/v1/predict", sampleStartup)
	w := env.do(t, http.MethodPost, "/v1/predict/camp", sampleStartup)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, 2, env.cache.Size())
}

func TestPredictRejectsBadBodies(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"array", `[1, 2, 3]`, http.StatusBadRequest},
		{"null", `null`, http.StatusBadRequest},
		{"empty", ``, http.StatusBadRequest},
		{"malformed", `{"sector": `, http.StatusBadRequest},
		{"too large", `{"sector": "` + strings.Repeat("a", 2<<20) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/predict", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			env.server.Handler().ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, "validation", body["category"])
		})
	}
}

func TestPredictRequiresJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/predict", strings.NewReader("sector=saas"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestPredictEmptyObjectUsesDefaults(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/predict", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code)

	var out PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "seed", out.FundingStage)
	assert.Equal(t, "other", out.Sector)
}

func TestNormalize(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/normalize", `{"funding_stage": "Series_A", "runway_months": "18", "startup_name": "x"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var out NormalizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out.Features, features.NumFeatures)
	assert.NotContains(t, out.Features, "startup_name")
	assert.Equal(t, "series_a", out.FundingStage)
	assert.InDelta(t, 18, out.Features[features.RunwayMonths], 1e-12)
	assert.NotEmpty(t, out.Defaulted)
	assert.Greater(t, out.Completeness, 0.0)
	assert.Less(t, out.Completeness, 1.0)
}

func TestMetricsAndCacheStats(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/v1/predict", sampleStartup)

	w := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.EqualValues(t, 1, stats["predictions"])
	assert.Contains(t, stats, "models")

	w = env.do(t, http.MethodGet, "/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cacheStats := decode(t, w)
	assert.Equal(t, true, cacheStats["enabled"])
	assert.EqualValues(t, 1, cacheStats["active_items"])

	w = env.do(t, http.MethodDelete, "/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["cleared"])
	assert.Zero(t, env.cache.Size())

	w = env.do(t, http.MethodPost, "/v1/predict", sampleStartup)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
}

func TestGzipResponses(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) {
		d.Compression = middleware.NewCompression(middleware.DefaultCompressionConfig())
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/features", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	var schema []map[string]any
	require.NoError(t, json.NewDecoder(gz).Decode(&schema))
	assert.Len(t, schema, features.NumFeatures)

	stats := decode(t, env.do(t, http.MethodGet, "/metrics", nil))
	require.Contains(t, stats, "compression")
	assert.EqualValues(t, 1, stats["compression"].(map[string]any)["compressed_requests"])
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/predict", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) {
		d.Security.RequestsPerMinute = 1
		d.Security.Burst = 1
	})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil).Code)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestSwaggerDoc(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/v1/predict")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v2/predict", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
