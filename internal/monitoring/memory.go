package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// RuntimeSampler periodically copies Go runtime memory statistics into
// Metrics and reports heap pressure.
type RuntimeSampler struct {
	metrics           *Metrics
	logger            *Logger
	interval          time.Duration
	pressureThreshold float64

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewRuntimeSampler creates a sampler. pressureThreshold is the heap
// in-use fraction above which a system event is logged.
func NewRuntimeSampler(metrics *Metrics, logger *Logger, interval time.Duration, pressureThreshold float64) *RuntimeSampler {
	return &RuntimeSampler{
		metrics:           metrics,
		logger:            logger,
		interval:          interval,
		pressureThreshold: pressureThreshold,
		done:              make(chan struct{}),
	}
}

// Start samples once immediately and then on every tick until ctx is done
// or Stop is called.
func (s *RuntimeSampler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.Sample()

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sample()
			}
		}
	}()
}

// Stop halts sampling and waits for the goroutine to exit.
func (s *RuntimeSampler) Stop() {
	s.once.Do(func() {
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
	})
	<-s.done
}

// Sample records the current memory statistics.
func (s *RuntimeSampler) Sample() {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s.metrics.RecordGCMetrics(int64(mem.NumGC), int64(mem.PauseTotalNs), int64(mem.HeapAlloc), int64(mem.HeapSys))

	if mem.HeapSys == 0 || s.pressureThreshold <= 0 {
		return
	}
	utilization := float64(mem.HeapInuse) / float64(mem.HeapSys)
	if utilization > s.pressureThreshold {
		s.logger.SystemLogger("memory_pressure", fmt.Sprintf(
			"utilization:%.2f inuse:%dMB sys:%dMB goroutines:%d",
			utilization,
			mem.HeapInuse/(1024*1024),
			mem.HeapSys/(1024*1024),
			runtime.NumGoroutine(),
		))
	}
}
