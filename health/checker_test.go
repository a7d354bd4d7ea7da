package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestResultConstructors(t *testing.T) {
	h := Healthy("all good")
	if h.Status != StatusHealthy || h.Message != "all good" || h.Timestamp.IsZero() {
		t.Errorf("Healthy() = %+v", h)
	}

	d := Degraded("slow")
	if d.Status != StatusDegraded || d.Message != "slow" {
		t.Errorf("Degraded() = %+v", d)
	}

	cause := errors.New("refused")
	u := Unhealthy("down", cause)
	if u.Status != StatusUnhealthy || !errors.Is(u.Error, cause) {
		t.Errorf("Unhealthy() = %+v", u)
	}
}

func TestResult_WithDetails(t *testing.T) {
	result := Healthy("ok").WithDetails(map[string]any{"hits": 42})
	if result.Details["hits"] != 42 {
		t.Errorf("Details = %v", result.Details)
	}
}

func TestCheckerFunc(t *testing.T) {
	checker := CheckerFunc(func(ctx context.Context) Result {
		return Degraded("latency")
	})

	if got := checker.Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("Check() = %+v", got)
	}
}

func TestPingChecker(t *testing.T) {
	ok := PingChecker(func(ctx context.Context) error { return nil })
	if got := ok.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("successful ping = %+v", got)
	}

	cause := errors.New("connection refused")
	bad := PingChecker(func(ctx context.Context) error { return cause })
	got := bad.Check(context.Background())
	if got.Status != StatusUnhealthy || !errors.Is(got.Error, cause) {
		t.Errorf("failed ping = %+v", got)
	}
}
