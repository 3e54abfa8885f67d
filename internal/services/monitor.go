package services

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// SystemStats is a point-in-time snapshot of process and host load,
// reported on the operational status endpoint.
type SystemStats struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  uint64    `json:"memory_used_mb"`
	Goroutines    int       `json:"goroutines"`
	Uptime        string    `json:"uptime"`
	Timestamp     time.Time `json:"timestamp"`
}

// ResourceMonitor samples host CPU and memory usage for the status
// endpoint.
type ResourceMonitor struct {
	logger    *logrus.Logger
	startedAt time.Time
}

// NewResourceMonitor creates a resource monitor.
func NewResourceMonitor(logger *logrus.Logger) *ResourceMonitor {
	return &ResourceMonitor{
		logger:    logger,
		startedAt: time.Now(),
	}
}

// GetSystemStats samples current resource usage. Sampling failures are
// logged and leave the corresponding field at zero rather than failing
// the status request.
func (m *ResourceMonitor) GetSystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(m.startedAt).Round(time.Second).String(),
		Timestamp:  time.Now(),
	}

	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	} else if err != nil {
		m.logger.WithError(err).Debug("Failed to sample CPU usage")
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = memInfo.UsedPercent
		stats.MemoryUsedMB = memInfo.Used / 1024 / 1024
	} else {
		m.logger.WithError(err).Debug("Failed to sample memory usage")
	}

	return stats
}
