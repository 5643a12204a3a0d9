package health

import (
	"context"
	"errors"
	"testing"
)

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

type stubChecker struct{ err error }

func (s *stubChecker) HealthCheck(context.Context) error { return s.err }

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&stubPinger{}, &stubChecker{}, t.TempDir())

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Errorf("Status = %s, want %s", report.Status, Healthy)
	}
	for name, result := range report.Checks {
		if result != CheckOK {
			t.Errorf("check %s = %s, want ok", name, result)
		}
	}
	if len(report.Checks) != 3 {
		t.Errorf("expected 3 checks, got %d", len(report.Checks))
	}
}

func TestCheck_DatabaseDownIsUnhealthy(t *testing.T) {
	svc := New(&stubPinger{err: errors.New("refused")}, &stubChecker{}, t.TempDir())

	report := svc.Check(context.Background())
	if report.Status != Unhealthy {
		t.Errorf("Status = %s, want %s", report.Status, Unhealthy)
	}
	if report.Checks["database"] != CheckError {
		t.Errorf("database check = %s, want error", report.Checks["database"])
	}
}

func TestCheck_EmbeddingDownDegrades(t *testing.T) {
	svc := New(&stubPinger{}, &stubChecker{err: errors.New("401")}, t.TempDir())

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Errorf("Status = %s, want %s", report.Status, Degraded)
	}
}

func TestCheck_MissingDataDirDegrades(t *testing.T) {
	svc := New(&stubPinger{}, nil, "/nonexistent/docs")

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Errorf("Status = %s, want %s", report.Status, Degraded)
	}
	if report.Checks["documents"] != CheckError {
		t.Errorf("documents check = %s, want error", report.Checks["documents"])
	}
}

func TestCheck_NilEmbeddingSkipped(t *testing.T) {
	svc := New(&stubPinger{}, nil, t.TempDir())

	report := svc.Check(context.Background())
	if _, ok := report.Checks["embedding"]; ok {
		t.Error("embedding check should be absent when checker is nil")
	}
}
