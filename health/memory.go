package health

import (
	"context"
	"fmt"
	"runtime"
)

// MemoryCheckerConfig configures the process memory checker.
type MemoryCheckerConfig struct {
	// WarningThreshold is the allocation ratio that triggers degraded
	// status, between 0 and 1. Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the allocation ratio that triggers unhealthy
	// status, between 0 and 1. Default: 0.95
	CriticalThreshold float64

	// MaxAlloc is the expected allocation ceiling in bytes. Zero uses the
	// memory obtained from the OS as the ceiling.
	MaxAlloc uint64
}

// MemoryChecker reports process memory pressure, a built-in check for the
// aggregator alongside dependency probes.
type MemoryChecker struct {
	config MemoryCheckerConfig
}

// NewMemoryChecker creates a memory checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold
	}
	return &MemoryChecker{config: config}
}

// Check reports memory pressure against the configured thresholds.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	maxAlloc := m.config.MaxAlloc
	if maxAlloc == 0 {
		maxAlloc = stats.Sys
	}

	ratio := float64(stats.Alloc) / float64(maxAlloc)
	details := map[string]any{
		"alloc_bytes": stats.Alloc,
		"max_alloc":   maxAlloc,
		"heap_in_use": stats.HeapInuse,
		"num_gc":      stats.NumGC,
		"goroutines":  runtime.NumGoroutine(),
	}

	switch {
	case ratio >= m.config.CriticalThreshold:
		return Unhealthy(
			fmt.Sprintf("memory usage critical: %.1f%%", ratio*100),
			ErrCheckFailed,
		).WithDetails(details)
	case ratio >= m.config.WarningThreshold:
		return Degraded(
			fmt.Sprintf("memory usage high: %.1f%%", ratio*100),
		).WithDetails(details)
	default:
		return Healthy(
			fmt.Sprintf("memory usage normal: %.1f%%", ratio*100),
		).WithDetails(details)
	}
}

var _ Checker = (*MemoryChecker)(nil)
