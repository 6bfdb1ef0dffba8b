// Package config loads the FLASH service configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/flash/internal/camp"
	"github.com/ZanzyTHEbar/flash/internal/ensemble"
	apperrors "github.com/ZanzyTHEbar/flash/internal/errors"
	"github.com/ZanzyTHEbar/flash/internal/models"
	"github.com/ZanzyTHEbar/flash/internal/security"
	"github.com/ZanzyTHEbar/flash/internal/verdict"
)

// Config holds all FLASH configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Models   ModelsConfig   `yaml:"models"`
	Ensemble EnsembleConfig `yaml:"ensemble"`
	Verdict  VerdictConfig  `yaml:"verdict"`
	CAMP     CAMPConfig     `yaml:"camp"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port               string   `yaml:"port"`
	GinMode            string   `yaml:"gin_mode"` // debug, release, test
	AllowedOrigins     []string `yaml:"allowed_origins"`
	ShutdownTimeout    string   `yaml:"shutdown_timeout"`
	RequestTimeout     string   `yaml:"request_timeout"`
	MaxBodyBytes       int64    `yaml:"max_body_bytes"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"` // 0 disables
	RateLimitBurst     int      `yaml:"rate_limit_burst"`
	GzipMinBytes       int      `yaml:"gzip_min_bytes"` // 0 disables compression
}

// ModelsConfig selects the model artifacts to load.
type ModelsConfig struct {
	Dir         string   `yaml:"dir"`
	Enabled     []string `yaml:"enabled"`
	Parallelism int      `yaml:"parallelism"`
}

// EnsembleConfig configures the orchestrator.
type EnsembleConfig struct {
	Mode                  string             `yaml:"mode"` // ensemble, camp_only
	Weights               map[string]float64 `yaml:"weights"`
	Floor                 float64            `yaml:"floor"`
	Ceiling               float64            `yaml:"ceiling"`
	DegradedConfidence    float64            `yaml:"degraded_confidence"`
	SingleModelConfidence float64            `yaml:"single_model_confidence"`
	LowModelProbability   float64            `yaml:"low_model_probability"`
}

// VerdictConfig configures the verdict thresholds.
type VerdictConfig struct {
	Thresholds    []verdict.Threshold `yaml:"thresholds"`
	LowAgreement  float64             `yaml:"low_agreement"`
	RiskHighBelow float64             `yaml:"risk_high_below"`
	RiskLowAbove  float64             `yaml:"risk_low_above"`
}

// CAMPConfig configures the CAMP scorer.
type CAMPConfig struct {
	StageWeighting bool                    `yaml:"stage_weighting"`
	StageWeights   map[string]camp.Weights `yaml:"stage_weights"`
}

// LoggingConfig configures the default slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// CacheConfig configures the prediction response cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	TTL     string `yaml:"ttl"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	ens := ensemble.DefaultConfig()
	ver := verdict.DefaultConfig()
	sec := security.DefaultSecurityConfig()

	return &Config{
		Server: ServerConfig{
			Port:               "8080",
			GinMode:            "release",
			AllowedOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			ShutdownTimeout:    "10s",
			RequestTimeout:     sec.RequestTimeout.String(),
			MaxBodyBytes:       sec.MaxBodyBytes,
			RateLimitPerMinute: sec.RequestsPerMinute,
			RateLimitBurst:     sec.Burst,
			GzipMinBytes:       1024,
		},
		Models: ModelsConfig{
			Dir:     "models",
			Enabled: models.KnownModels(),
		},
		Ensemble: EnsembleConfig{
			Mode:                  string(ens.Mode),
			Weights:               ens.Weights,
			Floor:                 ens.Floor,
			Ceiling:               ens.Ceiling,
			DegradedConfidence:    ens.DegradedConfidence,
			SingleModelConfidence: ens.SingleModelConfidence,
			LowModelProbability:   ens.LowModelProbability,
		},
		Verdict: VerdictConfig{
			Thresholds:    ver.Thresholds,
			LowAgreement:  ver.LowAgreement,
			RiskHighBelow: ver.RiskHighBelow,
			RiskLowAbove:  ver.RiskLowAbove,
		},
		CAMP: CAMPConfig{
			StageWeighting: false,
			StageWeights:   camp.DefaultStageWeights(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     "15m",
		},
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, apperrors.NewConfigurationError("failed to read config "+path, err)
		default:
			if err := cfg.decode(data); err != nil {
				return nil, apperrors.NewConfigurationError("failed to parse config "+path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// decode unmarshals data over c. yaml.v3 merges into existing maps, so a
// weight table present in the file replaces the default table instead of
// extending it.
func (c *Config) decode(data []byte) error {
	var tables struct {
		Ensemble struct {
			Weights map[string]float64 `yaml:"weights"`
		} `yaml:"ensemble"`
		CAMP struct {
			StageWeights map[string]camp.Weights `yaml:"stage_weights"`
		} `yaml:"camp"`
	}
	if err := yaml.Unmarshal(data, &tables); err != nil {
		return err
	}
	if tables.Ensemble.Weights != nil {
		c.Ensemble.Weights = nil
	}
	if tables.CAMP.StageWeights != nil {
		c.CAMP.StageWeights = nil
	}
	return yaml.Unmarshal(data, c)
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("FLASH_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		c.Server.GinMode = mode
	}
	if origins := os.Getenv("FLASH_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	if dir := os.Getenv("FLASH_MODELS_DIR"); dir != "" {
		c.Models.Dir = dir
	}
	if enabled := os.Getenv("FLASH_ENABLED_MODELS"); enabled != "" {
		c.Models.Enabled = splitList(enabled)
	}
	if mode := os.Getenv("FLASH_MODE"); mode != "" {
		c.Ensemble.Mode = mode
	}
	if level := os.Getenv("FLASH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("FLASH_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if limit := os.Getenv("FLASH_RATE_LIMIT_PER_MINUTE"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			c.Server.RateLimitPerMinute = n
		}
	}
	if ttl := os.Getenv("FLASH_CACHE_TTL"); ttl != "" {
		c.Cache.TTL = ttl
	}
	if enabled := os.Getenv("FLASH_CACHE_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			c.Cache.Enabled = b
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects inconsistent configuration. Problems are reported
// together, keyed by their YAML path.
func (c *Config) Validate() error {
	problems := map[string]string{}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		problems["server.port"] = fmt.Sprintf("invalid port %q", c.Server.Port)
	}
	switch c.Server.GinMode {
	case "debug", "release", "test":
	default:
		problems["server.gin_mode"] = fmt.Sprintf("unknown gin mode %q", c.Server.GinMode)
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		problems["server.shutdown_timeout"] = err.Error()
	}
	if _, err := time.ParseDuration(c.Server.RequestTimeout); err != nil {
		problems["server.request_timeout"] = err.Error()
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			problems["server.allowed_origins"] = fmt.Sprintf("origin %q must be * or start with http:// or https://", origin)
		}
	}
	if c.Server.MaxBodyBytes <= 0 {
		problems["server.max_body_bytes"] = "must be positive"
	}
	if c.Server.RateLimitPerMinute < 0 {
		problems["server.rate_limit_per_minute"] = "must not be negative"
	}
	if c.Server.GzipMinBytes < 0 {
		problems["server.gzip_min_bytes"] = "must not be negative"
	}

	if c.Models.Dir == "" {
		problems["models.dir"] = "must not be empty"
	}
	if c.Models.Parallelism < 0 {
		problems["models.parallelism"] = "must not be negative"
	}
	seen := map[string]bool{}
	for _, id := range c.Models.Enabled {
		if _, ok := models.AdapterFor(id); !ok {
			problems["models.enabled."+id] = "unknown model"
			continue
		}
		if seen[id] {
			problems["models.enabled."+id] = "listed twice"
		}
		seen[id] = true
		if _, ok := c.Ensemble.Weights[id]; !ok {
			problems["ensemble.weights."+id] = "enabled model has no weight"
		}
	}

	if c.Ensemble.Mode != string(ensemble.ModeEnsemble) && c.Ensemble.Mode != string(ensemble.ModeCAMPOnly) {
		problems["ensemble.mode"] = fmt.Sprintf("unknown mode %q", c.Ensemble.Mode)
	}
	if c.Ensemble.Weights[ensemble.CAMPComponent] <= 0 {
		problems["ensemble.weights.camp"] = "camp weight must be positive"
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		problems["logging.level"] = err.Error()
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		problems["logging.format"] = fmt.Sprintf("unknown format %q", c.Logging.Format)
	}

	if ttl, err := time.ParseDuration(c.Cache.TTL); err != nil || ttl <= 0 {
		problems["cache.ttl"] = fmt.Sprintf("invalid duration %q", c.Cache.TTL)
	}

	if len(problems) > 0 {
		return apperrors.NewConfigurationErrorWithMap(problems)
	}

	if _, err := verdict.NewMapper(c.VerdictConfig()); err != nil {
		return err
	}
	return nil
}

// EnsembleConfig converts the ensemble section for the orchestrator.
func (c *Config) EnsembleConfig() ensemble.Config {
	weights := make(map[string]float64, len(c.Ensemble.Weights))
	for id, w := range c.Ensemble.Weights {
		weights[id] = w
	}
	return ensemble.Config{
		Mode:                  ensemble.Mode(c.Ensemble.Mode),
		Weights:               weights,
		Floor:                 c.Ensemble.Floor,
		Ceiling:               c.Ensemble.Ceiling,
		DegradedConfidence:    c.Ensemble.DegradedConfidence,
		SingleModelConfidence: c.Ensemble.SingleModelConfidence,
		LowModelProbability:   c.Ensemble.LowModelProbability,
	}
}

// VerdictConfig converts the verdict section for the mapper.
func (c *Config) VerdictConfig() verdict.Config {
	return verdict.Config{
		Thresholds:    append([]verdict.Threshold(nil), c.Verdict.Thresholds...),
		LowAgreement:  c.Verdict.LowAgreement,
		RiskHighBelow: c.Verdict.RiskHighBelow,
		RiskLowAbove:  c.Verdict.RiskLowAbove,
	}
}

// ScorerOptions converts the CAMP section into scorer options.
func (c *Config) ScorerOptions() []camp.Option {
	if !c.CAMP.StageWeighting {
		return nil
	}
	return []camp.Option{camp.WithStageWeights(c.CAMP.StageWeights)}
}

// LogLevel returns the configured level, falling back to info.
func (c *Config) LogLevel() slog.Level {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// CacheTTL returns the response cache TTL.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// SecurityConfig converts the request hardening settings.
func (c *Config) SecurityConfig() security.SecurityConfig {
	cfg := security.DefaultSecurityConfig()
	if d, err := time.ParseDuration(c.Server.RequestTimeout); err == nil {
		cfg.RequestTimeout = d
	}
	cfg.MaxBodyBytes = c.Server.MaxBodyBytes
	cfg.RequestsPerMinute = c.Server.RateLimitPerMinute
	cfg.Burst = c.Server.RateLimitBurst
	return cfg
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}
