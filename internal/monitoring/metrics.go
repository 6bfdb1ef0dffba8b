package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/ZanzyTHEbar/flash/internal/models"
)

// maxResponseSamples bounds the percentile window.
const maxResponseSamples = 1000

// Metrics holds application metrics
type Metrics struct {
	RequestCount      int64
	ErrorCount        int64
	CacheHits         int64
	CacheMisses       int64
	PredictionCount   int64
	DegradedCount     int64
	ResponseTimeTotal int64 // in nanoseconds
	StartTime         time.Time

	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	VerdictCounts map[string]int64
	VerdictMutex  sync.RWMutex

	ModelCalls    map[string]int64
	ModelFailures map[string]int64
	ModelLatency  map[string]time.Duration
	ModelMutex    sync.RWMutex

	GCCount        int64
	GCPauseTotalNs int64
	HeapAlloc      int64
	HeapSys        int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		ResponseTimes:        make([]time.Duration, 0, maxResponseSamples),
		RequestCountByStatus: make(map[int]int64),
		VerdictCounts:        make(map[string]int64),
		ModelCalls:           make(map[string]int64),
		ModelFailures:        make(map[string]int64),
		ModelLatency:         make(map[string]time.Duration),
	}
}

var _ models.HealthRecorder = (*Metrics)(nil)

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// RecordPrediction counts a completed prediction by verdict.
func (m *Metrics) RecordPrediction(verdict string, degraded bool) {
	atomic.AddInt64(&m.PredictionCount, 1)
	if degraded {
		atomic.AddInt64(&m.DegradedCount, 1)
	}

	m.VerdictMutex.Lock()
	m.VerdictCounts[verdict]++
	m.VerdictMutex.Unlock()
}

// RecordSuccess records a model that produced a probability.
func (m *Metrics) RecordSuccess(modelID string, latency time.Duration) {
	m.ModelMutex.Lock()
	defer m.ModelMutex.Unlock()
	m.ModelCalls[modelID]++
	m.ModelLatency[modelID] += latency
}

// RecordFailure records a model that was unavailable for a request.
func (m *Metrics) RecordFailure(modelID string, _ error) {
	m.ModelMutex.Lock()
	defer m.ModelMutex.Unlock()
	m.ModelCalls[modelID]++
	m.ModelFailures[modelID]++
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	atomic.AddInt64(&m.ResponseTimeTotal, duration.Nanoseconds())

	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = append(m.ResponseTimes, duration)
	if len(m.ResponseTimes) > maxResponseSamples {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// RecordGCMetrics records Go garbage collector metrics
func (m *Metrics) RecordGCMetrics(gcCount int64, gcPauseTotalNs int64, heapAlloc, heapSys int64) {
	atomic.StoreInt64(&m.GCCount, gcCount)
	atomic.StoreInt64(&m.GCPauseTotalNs, gcPauseTotalNs)
	atomic.StoreInt64(&m.HeapAlloc, heapAlloc)
	atomic.StoreInt64(&m.HeapSys, heapSys)
}

// GetPercentileResponseTime returns the nearest-rank percentile of the
// recent response times.
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	samples := make(stats.Float64Data, len(m.ResponseTimes))
	for i, d := range m.ResponseTimes {
		samples[i] = float64(d)
	}
	m.ResponseTimesMutex.RUnlock()

	value, err := stats.PercentileNearestRank(samples, percentile)
	if err != nil {
		return 0
	}
	return time.Duration(value)
}

// GetStatusCodeDistribution returns request count by status code
func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.StatusMutex.RLock()
	defer m.StatusMutex.RUnlock()

	distribution := make(map[int]int64, len(m.RequestCountByStatus))
	for code, count := range m.RequestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

// GetVerdictDistribution returns prediction count by verdict
func (m *Metrics) GetVerdictDistribution() map[string]int64 {
	m.VerdictMutex.RLock()
	defer m.VerdictMutex.RUnlock()

	distribution := make(map[string]int64, len(m.VerdictCounts))
	for verdict, count := range m.VerdictCounts {
		distribution[verdict] = count
	}
	return distribution
}

// GetModelStats returns per-model call, failure and latency statistics.
func (m *Metrics) GetModelStats() map[string]interface{} {
	m.ModelMutex.RLock()
	defer m.ModelMutex.RUnlock()

	ids := make([]string, 0, len(m.ModelCalls))
	for id := range m.ModelCalls {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]interface{}, len(ids))
	for _, id := range ids {
		calls := m.ModelCalls[id]
		failures := m.ModelFailures[id]
		successes := calls - failures

		failureRate := float64(0)
		if calls > 0 {
			failureRate = float64(failures) / float64(calls) * 100
		}
		avgLatency := float64(0)
		if successes > 0 {
			avgLatency = float64(m.ModelLatency[id]) / float64(successes) / 1e6
		}

		out[id] = map[string]interface{}{
			"calls":                calls,
			"failures":             failures,
			"failure_rate_percent": failureRate,
			"avg_latency_ms":       avgLatency,
		}
	}
	return out
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)
	predictions := atomic.LoadInt64(&m.PredictionCount)
	degraded := atomic.LoadInt64(&m.DegradedCount)
	totalResponseTime := atomic.LoadInt64(&m.ResponseTimeTotal)

	errorRate := float64(0)
	avgResponseTime := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
		avgResponseTime = float64(totalResponseTime) / float64(requests) / 1e6
	}

	cacheHitRate := float64(0)
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	degradedRate := float64(0)
	if predictions > 0 {
		degradedRate = float64(degraded) / float64(predictions) * 100
	}

	heapAlloc := atomic.LoadInt64(&m.HeapAlloc)
	heapSys := atomic.LoadInt64(&m.HeapSys)
	heapUsage := float64(0)
	if heapSys > 0 {
		heapUsage = float64(heapAlloc) / float64(heapSys) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"start_time":             m.StartTime.Format(time.RFC3339),
		"total_requests":         requests,
		"error_count":            errors,
		"error_rate_percent":     errorRate,
		"cache_hits":             cacheHits,
		"cache_misses":           cacheMisses,
		"cache_hit_rate_percent": cacheHitRate,
		"avg_response_time_ms":   avgResponseTime,

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),

		"predictions":           predictions,
		"degraded_predictions":  degraded,
		"degraded_rate_percent": degradedRate,
		"verdict_distribution":  m.GetVerdictDistribution(),
		"models":                m.GetModelStats(),

		"go_gc_count":           atomic.LoadInt64(&m.GCCount),
		"go_gc_pause_total_ns":  atomic.LoadInt64(&m.GCPauseTotalNs),
		"go_heap_alloc_bytes":   heapAlloc,
		"go_heap_sys_bytes":     heapSys,
		"go_heap_usage_percent": heapUsage,
	}
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	for _, counter := range []*int64{
		&m.RequestCount, &m.ErrorCount, &m.CacheHits, &m.CacheMisses,
		&m.PredictionCount, &m.DegradedCount, &m.ResponseTimeTotal,
		&m.GCCount, &m.GCPauseTotalNs, &m.HeapAlloc, &m.HeapSys,
	} {
		atomic.StoreInt64(counter, 0)
	}

	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = m.ResponseTimes[:0]
	m.ResponseTimesMutex.Unlock()

	m.StatusMutex.Lock()
	m.RequestCountByStatus = make(map[int]int64)
	m.StatusMutex.Unlock()

	m.VerdictMutex.Lock()
	m.VerdictCounts = make(map[string]int64)
	m.VerdictMutex.Unlock()

	m.ModelMutex.Lock()
	m.ModelCalls = make(map[string]int64)
	m.ModelFailures = make(map[string]int64)
	m.ModelLatency = make(map[string]time.Duration)
	m.ModelMutex.Unlock()

	m.StartTime = time.Now()
}
