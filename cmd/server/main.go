// Command server runs the FLASH prediction API.
//
//	@title			FLASH prediction API
//	@version		1.0
//	@description	Startup success prediction from CAMP scores and an ensemble of trained classifiers.
//	@BasePath		/
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ZanzyTHEbar/flash/internal/api"
	"github.com/ZanzyTHEbar/flash/internal/cache"
	"github.com/ZanzyTHEbar/flash/internal/config"
	"github.com/ZanzyTHEbar/flash/internal/engine"
	"github.com/ZanzyTHEbar/flash/internal/middleware"
	"github.com/ZanzyTHEbar/flash/internal/monitoring"
	"github.com/ZanzyTHEbar/flash/internal/resilience"
)

const (
	sampleInterval    = 15 * time.Second
	heapPressure      = 0.9
	cacheSweepDivisor = 4
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	configPath := flag.String("config", os.Getenv("FLASH_CONFIG"), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := monitoring.NewLogger(cfg.LogLevel(), cfg.Logging.Format, os.Stdout)
	slog.SetDefault(logger.Logger)
	gin.SetMode(cfg.Server.GinMode)

	app, err := newApplication(cfg, logger)
	if err != nil {
		slog.Error("Failed to start prediction engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.run(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server exited")
}

// application owns the long-lived services behind the HTTP server.
type application struct {
	cfg     *config.Config
	logger  *monitoring.Logger
	metrics *monitoring.Metrics
	health  *resilience.DegradationManager
	cache   *cache.Cache
	sampler *monitoring.RuntimeSampler
	engine  *engine.Engine
	server  *api.Server

	background sync.WaitGroup
}

func newApplication(cfg *config.Config, logger *monitoring.Logger) (*application, error) {
	metrics := monitoring.NewMetrics()
	health := resilience.NewDegradationManager(resilience.DefaultDegradationConfig(), logger.Logger)

	eng, err := engine.New(cfg, logger.Logger, metrics, health)
	if err != nil {
		return nil, err
	}

	for _, id := range eng.Pool.IDs() {
		health.RegisterModel(id, func(ctx context.Context) error {
			return eng.Pool.Probe(ctx, id)
		})
	}

	var responseCache *cache.Cache
	if cfg.Cache.Enabled {
		responseCache = cache.NewCache(cfg.CacheTTL(), cache.WithMetrics(metrics), cache.WithLogger(logger.Logger))
	}

	var compression *middleware.Compression
	if cfg.Server.GzipMinBytes > 0 {
		cc := middleware.DefaultCompressionConfig()
		cc.MinSize = cfg.Server.GzipMinBytes
		compression = middleware.NewCompression(cc)
	}

	server := api.NewServer(api.Dependencies{
		Orchestrator:   eng.Orchestrator,
		Pool:           eng.Pool,
		Metrics:        metrics,
		Logger:         logger,
		Health:         health,
		Cache:          responseCache,
		Compression:    compression,
		Security:       cfg.SecurityConfig(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	return &application{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		health:  health,
		cache:   responseCache,
		sampler: monitoring.NewRuntimeSampler(metrics, logger, sampleInterval, heapPressure),
		engine:  eng,
		server:  server,
	}, nil
}

// run serves until ctx is cancelled and then shuts down gracefully.
func (a *application) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	bgCtx, cancelBackground := context.WithCancel(ctx)
	a.startBackground(bgCtx)
	defer a.stopBackground()
	defer cancelBackground()

	errCh := make(chan error, 1)
	go func() {
		a.logger.SystemLogger("server_start", "listening on "+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.SystemLogger("server_shutdown", "draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (a *application) startBackground(ctx context.Context) {
	a.health.RunHealthChecks(ctx)
	a.background.Add(1)
	go func() {
		defer a.background.Done()
		a.health.StartHealthChecks(ctx)
	}()

	a.sampler.Start(ctx)
	if a.cache != nil {
		a.cache.StartCleanup(a.cfg.CacheTTL() / cacheSweepDivisor)
	}
}

// stopBackground expects the context passed to startBackground to be done.
func (a *application) stopBackground() {
	a.background.Wait()
	a.sampler.Stop()
	if a.cache != nil {
		a.cache.Close()
	}
	a.health.GracefulShutdown()
}
