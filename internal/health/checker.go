// Package health provides periodic health checks with auto-recovery.
// Checks: state database reachable, companion relay reachable.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/sunflower-app/sunflower/internal/infra/metrics"
)

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Pinger is anything with a cheap liveness check.
type Pinger interface {
	Ping() error
}

// ContextPinger is a liveness check that honours a context.
type ContextPinger interface {
	Ping(ctx context.Context) error
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// NewChecker creates a checker for the state database and, when non-nil,
// the companion relay.
func NewChecker(db Pinger, companion ContextPinger) *Checker {
	c := &Checker{
		interval: 60 * time.Second,
		checks: []Check{
			{
				Name: "sqlite",
				CheckFn: func(ctx context.Context) error {
					return db.Ping()
				},
				// No recovery: a closed or unreadable database needs a restart.
			},
		},
	}
	if companion != nil {
		c.checks = append(c.checks, Check{
			Name: "companion",
			CheckFn: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
				defer cancel()
				return companion.Ping(ctx)
			},
			// The redis client reconnects on its own; relays are latest-value
			// so nothing needs replaying.
		})
	}
	return c
}

// Run starts the health check loop and blocks until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		err := check.CheckFn(ctx)
		if err != nil && check.RecoverFn != nil {
			metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
			if check.RecoverFn(ctx) == nil {
				err = check.CheckFn(ctx)
			}
		}
		s.Healthy = err == nil
		if err != nil {
			s.Error = err.Error()
		}
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(metrics.BoolGauge(s.Healthy))
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
