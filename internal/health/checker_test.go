package health

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sunflower-app/sunflower/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// recoveries reads sunflower_health_recoveries_total for one check.
func recoveries(t *testing.T, check string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "sunflower_health_recoveries_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "check" && l.GetValue() == check {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

type fakeCompanion struct{ err error }

func (f fakeCompanion) Ping(ctx context.Context) error { return f.err }

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker_WithoutCompanion(t *testing.T) {
	c := NewChecker(newTestDB(t), nil)
	if len(c.checks) != 1 {
		t.Errorf("checks = %d, want 1", len(c.checks))
	}
}

func TestNewChecker_WithCompanion(t *testing.T) {
	c := NewChecker(newTestDB(t), fakeCompanion{})
	if len(c.checks) != 2 {
		t.Errorf("checks = %d, want 2", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	c := NewChecker(newTestDB(t), fakeCompanion{})
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("Statuses() = %d, want 2", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(newTestDB(t), nil)

	// Before any run there are no statuses, so IsHealthy is vacuously true
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_CompanionDown(t *testing.T) {
	c := NewChecker(newTestDB(t), fakeCompanion{err: errors.New("connection refused")})
	c.runAll(context.Background())

	if c.IsHealthy() {
		t.Error("IsHealthy() should be false when the companion relay is down")
	}
	for _, s := range c.Statuses() {
		switch s.Name {
		case "sqlite":
			if !s.Healthy {
				t.Errorf("sqlite should stay healthy, got %s", s.Error)
			}
		case "companion":
			if s.Healthy || s.Error != "connection refused" {
				t.Errorf("companion status = %+v", s)
			}
		}
	}
}

func TestChecker_SQLiteClosed(t *testing.T) {
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	db.Close()

	before := recoveries(t, "sqlite")
	c := NewChecker(db, nil)
	c.runAll(context.Background())

	if c.IsHealthy() {
		t.Error("IsHealthy() should be false after the database is closed")
	}
	if got := recoveries(t, "sqlite"); got != before {
		t.Errorf("sqlite recoveries = %v, want %v: it has no recovery action", got, before)
	}
}

func TestChecker_RecoveredCheckIsHealthy(t *testing.T) {
	broken := true
	c := &Checker{
		checks: []Check{
			{
				Name: "flaky",
				CheckFn: func(ctx context.Context) error {
					if broken {
						return errors.New("down")
					}
					return nil
				},
				RecoverFn: func(ctx context.Context) error {
					broken = false
					return nil
				},
			},
		},
	}
	before := recoveries(t, "flaky")

	c.runAll(context.Background())

	if s := c.Statuses()[0]; !s.Healthy || s.Error != "" {
		t.Errorf("status after recovery = %+v", s)
	}
	if got := recoveries(t, "flaky"); got != before+1 {
		t.Errorf("recoveries = %v, want %v", got, before+1)
	}
}

func TestChecker_FailingCheckRecovers(t *testing.T) {
	recovered := false
	c := &Checker{
		checks: []Check{
			{
				Name: "always_fail",
				CheckFn: func(ctx context.Context) error {
					return os.ErrPermission
				},
				RecoverFn: func(ctx context.Context) error {
					recovered = true
					return nil
				},
			},
		},
	}

	c.runAll(context.Background())

	statuses := c.Statuses()
	if statuses[0].Healthy {
		t.Error("always_fail check should not be healthy")
	}
	if statuses[0].Error == "" {
		t.Error("failing check should record its error")
	}
	if !recovered {
		t.Error("RecoverFn should run after a failure")
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	c := NewChecker(newTestDB(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	<-done

	if len(c.Statuses()) != 1 {
		t.Error("Run should complete one pass before observing cancellation")
	}
}
