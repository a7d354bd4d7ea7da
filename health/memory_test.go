package health

import (
	"context"
	"testing"
)

func TestMemoryChecker_Defaults(t *testing.T) {
	checker := NewMemoryChecker(MemoryCheckerConfig{})

	if checker.config.WarningThreshold != 0.8 {
		t.Errorf("WarningThreshold = %v, want 0.8", checker.config.WarningThreshold)
	}
	if checker.config.CriticalThreshold != 0.95 {
		t.Errorf("CriticalThreshold = %v, want 0.95", checker.config.CriticalThreshold)
	}
}

func TestMemoryChecker_Check(t *testing.T) {
	checker := NewMemoryChecker(MemoryCheckerConfig{})

	result := checker.Check(context.Background())
	if result.Status == StatusUnhealthy {
		t.Errorf("Check() = %+v, want healthy or degraded in a test process", result)
	}
	if result.Details["alloc_bytes"] == nil {
		t.Error("Check() missing alloc_bytes detail")
	}
}

func TestMemoryChecker_CancelledContext(t *testing.T) {
	checker := NewMemoryChecker(MemoryCheckerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := checker.Check(ctx); got.Status != StatusUnhealthy {
		t.Errorf("Check() on cancelled ctx = %+v, want unhealthy", got)
	}
}

func TestMemoryChecker_Thresholds(t *testing.T) {
	// A ceiling of 1 byte forces the critical path.
	critical := NewMemoryChecker(MemoryCheckerConfig{MaxAlloc: 1})
	if got := critical.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("Check() with 1-byte ceiling = %+v, want unhealthy", got)
	}

	// An enormous ceiling keeps usage well under the warning threshold.
	relaxed := NewMemoryChecker(MemoryCheckerConfig{MaxAlloc: 1 << 62})
	if got := relaxed.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("Check() with huge ceiling = %+v, want healthy", got)
	}
}
