package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/flash/internal/ensemble"
	apperrors "github.com/ZanzyTHEbar/flash/internal/errors"
	"github.com/ZanzyTHEbar/flash/internal/models"
	"github.com/ZanzyTHEbar/flash/internal/verdict"
)

var envVars = []string{
	"FLASH_PORT", "GIN_MODE", "FLASH_ALLOWED_ORIGINS", "FLASH_MODELS_DIR", "FLASH_ENABLED_MODELS",
	"FLASH_MODE", "FLASH_LOG_LEVEL", "FLASH_LOG_FORMAT", "FLASH_CACHE_TTL", "FLASH_CACHE_ENABLED",
	"FLASH_RATE_LIMIT_PER_MINUTE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flash.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, models.KnownModels(), cfg.Models.Enabled)
	assert.Equal(t, string(ensemble.ModeEnsemble), cfg.Ensemble.Mode)
	assert.Len(t, cfg.Verdict.Thresholds, 5)
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	clearEnv(t)

	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := Load(path)
		require.NoError(t, err)
		if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
			t.Errorf("Load(%q) mismatch (-want +got):\n%s", path, diff)
		}
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, `
server:
  port: "9090"
models:
  dir: /srv/flash/models
  enabled: [dna_analyzer, industry_model]
ensemble:
  mode: camp_only
  floor: 0.1
verdict:
  thresholds:
    - {min: 0.5, verdict: PASS, strength: medium}
    - {min: 0.0, verdict: FAIL, strength: medium}
camp:
  stage_weighting: true
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/srv/flash/models", cfg.Models.Dir)
	assert.Equal(t, []string{models.DNAAnalyzer, models.IndustryModel}, cfg.Models.Enabled)
	assert.Equal(t, ensemble.ModeCAMPOnly, cfg.EnsembleConfig().Mode)
	assert.InDelta(t, 0.1, cfg.Ensemble.Floor, 1e-12)
	assert.InDelta(t, 0.95, cfg.Ensemble.Ceiling, 1e-12, "unset keys keep defaults")
	assert.Len(t, cfg.Verdict.Thresholds, 2)
	assert.Len(t, cfg.ScorerOptions(), 1)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadReplacesWeightTables(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, `
models:
  enabled: [dna_analyzer]
ensemble:
  weights:
    camp: 0.4
    dna_analyzer: 0.6
camp:
  stage_weights:
    seed:
      capital: 0.1
      advantage: 0.2
      market: 0.3
      people: 0.4
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	if diff := cmp.Diff(map[string]float64{"camp": 0.4, models.DNAAnalyzer: 0.6}, cfg.Ensemble.Weights); diff != "" {
		t.Errorf("weights mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, cfg.CAMP.StageWeights, 1)
	assert.Contains(t, cfg.CAMP.StageWeights, "seed")

	defaults, err := Load(writeFile(t, "ensemble:\n  floor: 0.1\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Ensemble.Weights, defaults.Ensemble.Weights, "absent tables keep defaults")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeFile(t, "server: [unterminated"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfiguration))
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "server:\n  port: \"9090\"\n")

	t.Setenv("FLASH_PORT", "7000")
	t.Setenv("FLASH_MODE", "camp_only")
	t.Setenv("FLASH_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("FLASH_ENABLED_MODELS", "dna_analyzer")
	t.Setenv("FLASH_CACHE_TTL", "1m")
	t.Setenv("FLASH_CACHE_ENABLED", "false")
	t.Setenv("GIN_MODE", "test")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.GinMode)
	assert.Equal(t, "camp_only", cfg.Ensemble.Mode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, []string{models.DNAAnalyzer}, cfg.Models.Enabled)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.False(t, cfg.Cache.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		problem string
	}{
		{"bad port", func(c *Config) { c.Server.Port = "http" }, "server.port"},
		{"port out of range", func(c *Config) { c.Server.Port = "70000" }, "server.port"},
		{"gin mode", func(c *Config) { c.Server.GinMode = "prod" }, "server.gin_mode"},
		{"unknown model", func(c *Config) { c.Models.Enabled = []string{"oracle"} }, "models.enabled.oracle"},
		{"duplicate model", func(c *Config) {
			c.Models.Enabled = []string{models.DNAAnalyzer, models.DNAAnalyzer}
		}, "models.enabled.dna_analyzer"},
		{"missing weight", func(c *Config) { delete(c.Ensemble.Weights, models.TemporalModel) }, "ensemble.weights.temporal_model"},
		{"camp weight", func(c *Config) { c.Ensemble.Weights[ensemble.CAMPComponent] = 0 }, "ensemble.weights.camp"},
		{"mode", func(c *Config) { c.Ensemble.Mode = "vibes" }, "ensemble.mode"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"cache ttl", func(c *Config) { c.Cache.TTL = "soon" }, "cache.ttl"},
		{"models dir", func(c *Config) { c.Models.Dir = "" }, "models.dir"},
		{"request timeout", func(c *Config) { c.Server.RequestTimeout = "later" }, "server.request_timeout"},
		{"origin scheme", func(c *Config) { c.Server.AllowedOrigins = []string{"localhost:3000"} }, "server.allowed_origins"},
		{"body cap", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.max_body_bytes"},
		{"gzip threshold", func(c *Config) { c.Server.GzipMinBytes = -1 }, "server.gzip_min_bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfiguration))
		})
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Verdict.Thresholds = []verdict.Threshold{
		{Min: 0.4, Verdict: verdict.Pass, Strength: verdict.StrengthHigh},
		{Min: 0.6, Verdict: verdict.Fail, Strength: verdict.StrengthHigh},
		{Min: 0.0, Verdict: verdict.StrongFail, Strength: verdict.StrengthHigh},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfiguration))
}

func TestConvertersCopyTables(t *testing.T) {
	cfg := DefaultConfig()

	ens := cfg.EnsembleConfig()
	ens.Weights[models.DNAAnalyzer] = 99
	assert.InDelta(t, 0.30, cfg.Ensemble.Weights[models.DNAAnalyzer], 1e-12)

	ver := cfg.VerdictConfig()
	ver.Thresholds[0].Min = 0.99
	assert.InDelta(t, 0.70, cfg.Verdict.Thresholds[0].Min, 1e-12)

	assert.Nil(t, cfg.ScorerOptions(), "stage weighting is off by default")
}

func TestSecurityConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLASH_RATE_LIMIT_PER_MINUTE", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Server.RequestTimeout = "5s"

	sec := cfg.SecurityConfig()
	assert.Zero(t, sec.RequestsPerMinute)
	assert.Equal(t, 5*time.Second, sec.RequestTimeout)
	assert.Equal(t, cfg.Server.MaxBodyBytes, sec.MaxBodyBytes)
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.TTL = "never"
	cfg.Server.ShutdownTimeout = "-1s"
	cfg.Logging.Level = "chatty"

	assert.Equal(t, 15*time.Minute, cfg.CacheTTL())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)

	cfg := DefaultConfig()
	cfg.Server.Port = "9191"
	cfg.Models.Enabled = []string{models.DNAAnalyzer, models.EnsembleModel}
	cfg.CAMP.StageWeighting = true

	path := filepath.Join(t.TempDir(), "nested", "flash.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
