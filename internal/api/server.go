// Package api exposes the prediction engine over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/flash/docs"
	"github.com/ZanzyTHEbar/flash/internal/cache"
	"github.com/ZanzyTHEbar/flash/internal/ensemble"
	apperrors "github.com/ZanzyTHEbar/flash/internal/errors"
	"github.com/ZanzyTHEbar/flash/internal/middleware"
	"github.com/ZanzyTHEbar/flash/internal/models"
	"github.com/ZanzyTHEbar/flash/internal/monitoring"
	"github.com/ZanzyTHEbar/flash/internal/resilience"
	"github.com/ZanzyTHEbar/flash/internal/security"
)

// Version is reported by /health. Overridden at link time.
var Version = "1.0.0"

// Dependencies are the collaborators the HTTP layer serves from. Cache,
// Health and Compression are optional.
type Dependencies struct {
	Orchestrator   *ensemble.Orchestrator
	Pool           *models.Pool
	Metrics        *monitoring.Metrics
	Logger         *monitoring.Logger
	Health         *resilience.DegradationManager
	Cache          *cache.Cache
	Compression    *middleware.Compression
	Security       security.SecurityConfig
	AllowedOrigins []string
}

// Server holds the gin engine and the services behind it.
type Server struct {
	orchestrator *ensemble.Orchestrator
	pool         *models.Pool
	metrics      *monitoring.Metrics
	logger       *monitoring.Logger
	health       *resilience.DegradationManager
	cache        *cache.Cache
	compression  *middleware.Compression
	started      time.Time

	router *gin.Engine
}

// NewServer builds the router with the full middleware chain.
func NewServer(deps Dependencies) *Server {
	s := &Server{
		orchestrator: deps.Orchestrator,
		pool:         deps.Pool,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		health:       deps.Health,
		cache:        deps.Cache,
		compression:  deps.Compression,
		started:      time.Now(),
	}
	if s.metrics == nil {
		s.metrics = monitoring.NewMetrics()
	}
	if s.logger == nil {
		s.logger = monitoring.NewLogger(slog.LevelInfo, "json", nil)
	}

	r := gin.New()

	// Request ids first so every later log line can carry one.
	r.Use(monitoring.RequestIDMiddleware())
	if handler := corsHandler(deps.AllowedOrigins); handler != nil {
		r.Use(handler)
	}
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))

	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())

	sec := security.NewSecurityMiddleware(deps.Security)
	r.Use(sec.SecurityHeaders)
	r.Use(sec.RequestTimeout)
	r.Use(sec.ValidateContentType)
	r.Use(sec.RateLimitByIP)
	if s.compression != nil {
		r.Use(s.compression.Handler())
	}

	s.routes(r)
	s.router = r
	return s
}

func corsHandler(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return nil
	}

	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", monitoring.RequestIDHeader},
		ExposeHeaders:    []string{monitoring.RequestIDHeader, "X-Cache"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.DELETE("/health/models/:id", s.handleResetModel)
	r.GET("/cache/stats", s.handleCacheStats)
	r.DELETE("/cache", s.handleClearCache)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/v1")
	v1.GET("/features", s.handleFeatures)
	v1.GET("/models", s.handleModels)
	v1.POST("/predict", s.handlePredict)
	v1.POST("/predict/camp", s.handlePredictCAMP)
	v1.POST("/normalize", s.handleNormalize)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
