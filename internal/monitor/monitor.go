// Package monitor samples host system load on an interval so an msock
// server or client can log or export it alongside its own connection
// counts, without forcing every caller to poll gopsutil directly.
package monitor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStats holds one sample of host-level metrics.
type SystemStats struct {
	CPUPercent    float64
	MemoryPercent float64
	LoadAverage   float64
}

// SystemMonitor samples SystemStats on a fixed interval in the
// background and keeps the most recent sample available to callers.
type SystemMonitor struct {
	logger   *slog.Logger
	interval time.Duration
	close    chan struct{}
	wg       sync.WaitGroup

	mu    sync.RWMutex
	stats SystemStats
}

// NewSystemMonitor creates a monitor sampling every interval. A
// non-positive interval defaults to 15 seconds.
func NewSystemMonitor(logger *slog.Logger, interval time.Duration) *SystemMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &SystemMonitor{
		logger:   logger.With("component", "system_monitor"),
		interval: interval,
		close:    make(chan struct{}),
	}
}

// Start begins periodic sampling in a background goroutine.
func (sm *SystemMonitor) Start() {
	sm.wg.Add(1)
	go sm.run()
}

// Stop halts sampling and waits for the background goroutine to exit.
func (sm *SystemMonitor) Stop() {
	close(sm.close)
	sm.wg.Wait()
}

// Stats returns the most recently collected sample.
func (sm *SystemMonitor) Stats() SystemStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.stats
}

func (sm *SystemMonitor) run() {
	defer sm.wg.Done()

	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	sm.collect()

	for {
		select {
		case <-sm.close:
			return
		case <-ticker.C:
			sm.collect()
		}
	}
}

func (sm *SystemMonitor) collect() {
	stats := SystemStats{}

	if percentage, err := cpu.Percent(0, false); err == nil && len(percentage) > 0 {
		stats.CPUPercent = percentage[0]
	} else {
		sm.logger.Debug("failed to collect cpu stats", "error", err)
	}

	if v, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = v.UsedPercent
	} else {
		sm.logger.Debug("failed to collect memory stats", "error", err)
	}

	if l, err := load.Avg(); err == nil {
		stats.LoadAverage = l.Load1
	} else {
		sm.logger.Debug("failed to collect load stats", "error", err)
	}

	sm.mu.Lock()
	sm.stats = stats
	sm.mu.Unlock()
}
