package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// SystemSampler tracks process memory and smoothed CPU usage for /health.
type SystemSampler struct {
	mu          sync.RWMutex
	memStats    runtime.MemStats
	cpuPercent  float64
	lastUpdated time.Time
}

func NewSystemSampler() *SystemSampler {
	s := &SystemSampler{}
	s.Update()
	return s
}

// Update refreshes memory stats immediately and samples CPU over one
// second, so it blocks its caller for about a second.
func (s *SystemSampler) Update() {
	s.mu.Lock()
	runtime.ReadMemStats(&s.memStats)
	s.mu.Unlock()

	percents, err := cpu.Percent(time.Second, false)
	if err != nil || len(percents) == 0 {
		return
	}
	current := percents[0]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cpuPercent == 0 {
		s.cpuPercent = current
	} else {
		const alpha = 0.3
		s.cpuPercent = alpha*current + (1-alpha)*s.cpuPercent
	}
	s.lastUpdated = time.Now()
}

func (s *SystemSampler) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"heapAllocMb": float64(s.memStats.HeapAlloc) / 1024 / 1024,
		"sysTotalMb":  float64(s.memStats.Sys) / 1024 / 1024,
		"gcCount":     s.memStats.NumGC,
		"goroutines":  runtime.NumGoroutine(),
		"cpuPercent":  s.cpuPercent,
		"updatedAt":   s.lastUpdated,
	}
}
