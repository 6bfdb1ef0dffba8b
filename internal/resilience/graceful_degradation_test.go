package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newManager(t *testing.T, window int) *DegradationManager {
	t.Helper()
	cfg := DefaultDegradationConfig()
	cfg.WindowSize = window
	cfg.HealthCheckTimeout = time.Second
	return NewDegradationManager(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLevelsFollowErrorRate(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		want     DegradationLevel
	}{
		{"healthy", 0, LevelNormal},
		{"degraded", 1, LevelDegraded},
		{"critical", 3, LevelCritical},
		{"emergency", 5, LevelEmergency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm := newManager(t, 10)
			dm.RegisterModel("dna_analyzer", nil)

			for i := 0; i < 10-tt.failures; i++ {
				dm.RecordSuccess("dna_analyzer", time.Millisecond)
			}
			for i := 0; i < tt.failures; i++ {
				dm.RecordFailure("dna_analyzer", errors.New("artifact rejected row"))
			}

			health, ok := dm.GetModelHealth("dna_analyzer")
			require.True(t, ok)
			assert.Equal(t, tt.want, health.Level)
			assert.InDelta(t, float64(tt.failures)/10, health.ErrorRate, 1e-12)
			assert.Equal(t, int64(10), health.TotalRequests)
		})
	}
}

func TestWindowAllowsRecovery(t *testing.T) {
	dm := newManager(t, 4)
	dm.RegisterModel("temporal_model", nil)

	for i := 0; i < 4; i++ {
		dm.RecordFailure("temporal_model", errors.New("boom"))
	}
	assert.False(t, dm.IsModelAvailable("temporal_model"))

	for i := 0; i < 4; i++ {
		dm.RecordSuccess("temporal_model", 0)
	}

	health, _ := dm.GetModelHealth("temporal_model")
	assert.Equal(t, LevelNormal, health.Level)
	assert.Zero(t, health.ErrorRate)
	assert.Equal(t, int64(4), health.ErrorCount, "cumulative count survives the window")
	assert.Equal(t, "boom", health.LastError)
	assert.Nil(t, health.DegradedSince)
	assert.True(t, dm.IsModelAvailable("temporal_model"))
}

func TestDegradedTooLongEscalates(t *testing.T) {
	dm := newManager(t, 10)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dm.now = func() time.Time { return clock }
	dm.RegisterModel("industry_model", nil)

	dm.RecordFailure("industry_model", errors.New("x"))
	for i := 0; i < 5; i++ {
		dm.RecordSuccess("industry_model", 0)
	}
	health, _ := dm.GetModelHealth("industry_model")
	require.Equal(t, LevelDegraded, health.Level)
	require.NotNil(t, health.DegradedSince)

	clock = clock.Add(dm.config.MaxDegradedDuration + time.Minute)
	dm.RecordSuccess("industry_model", 0)

	health, _ = dm.GetModelHealth("industry_model")
	assert.Equal(t, LevelEmergency, health.Level)
}

func TestUnknownModelsAreIgnored(t *testing.T) {
	dm := newManager(t, 10)
	dm.RecordFailure("ghost", errors.New("x"))

	_, ok := dm.GetModelHealth("ghost")
	assert.False(t, ok)
	assert.False(t, dm.IsModelAvailable("ghost"))
	assert.Empty(t, dm.GetAllModelHealth())
	assert.Equal(t, LevelNormal, dm.OverallLevel())
}

func TestOverallLevelIsWorst(t *testing.T) {
	dm := newManager(t, 2)
	dm.RegisterModel("dna_analyzer", nil)
	dm.RegisterModel("ensemble_model", nil)

	dm.RecordSuccess("dna_analyzer", 0)
	dm.RecordFailure("ensemble_model", nil)

	assert.Equal(t, LevelEmergency, dm.OverallLevel())
	assert.Len(t, dm.GetAllModelHealth(), 2)

	health, _ := dm.GetModelHealth("ensemble_model")
	assert.NotEmpty(t, health.LastError, "nil failures still record a cause")
}

func TestRunHealthChecks(t *testing.T) {
	dm := newManager(t, 10)
	dm.RegisterModel("dna_analyzer", func(ctx context.Context) error { return nil })
	dm.RegisterModel("temporal_model", func(ctx context.Context) error { return errors.New("bad artifact") })
	dm.RegisterModel("industry_model", func(ctx context.Context) error { panic("corrupt tree") })
	dm.RegisterModel("ensemble_model", nil)

	dm.RunHealthChecks(context.Background())

	all := dm.GetAllModelHealth()
	assert.Equal(t, LevelNormal, all["dna_analyzer"].Level)
	assert.Equal(t, int64(1), all["dna_analyzer"].TotalRequests)
	assert.Equal(t, LevelEmergency, all["temporal_model"].Level)
	assert.Contains(t, all["temporal_model"].LastError, "health check failed for model temporal_model")
	assert.Equal(t, LevelEmergency, all["industry_model"].Level)
	assert.Equal(t, int64(0), all["ensemble_model"].TotalRequests, "no check registered")
}

func TestStartHealthChecksStopsWithContext(t *testing.T) {
	dm := newManager(t, 10)
	dm.config.HealthCheckInterval = 5 * time.Millisecond
	dm.RegisterModel("dna_analyzer", func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dm.StartHealthChecks(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		health, _ := dm.GetModelHealth("dna_analyzer")
		return health.TotalRequests >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestResetModel(t *testing.T) {
	dm := newManager(t, 2)
	dm.RegisterModel("dna_analyzer", nil)
	dm.RecordFailure("dna_analyzer", errors.New("x"))

	dm.ResetModel("dna_analyzer")

	health, _ := dm.GetModelHealth("dna_analyzer")
	assert.Equal(t, LevelNormal, health.Level)
	assert.Zero(t, health.TotalRequests)

	dm.RecordSuccess("dna_analyzer", 0)
	health, _ = dm.GetModelHealth("dna_analyzer")
	assert.Zero(t, health.ErrorRate)
}

func TestLevelJSON(t *testing.T) {
	data, err := json.Marshal(ModelHealth{ModelID: "dna_analyzer", Level: LevelCritical})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"critical"`)
	assert.Equal(t, "unknown", DegradationLevel(42).String())
}
