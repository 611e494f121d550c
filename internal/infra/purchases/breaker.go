package purchases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sunflower-app/sunflower/internal/domain"
)

// BreakerState is the state of a Guarded source.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // fetches pass through
	BreakerOpen                         // fetches fail fast
	BreakerHalfOpen                     // one trial fetch allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Guarded source.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures that open the breaker
	Cooldown         time.Duration // time spent open before a trial fetch
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 3, Cooldown: time.Minute}
}

// Guarded wraps a purchase source with a circuit breaker so a backend
// outage does not stall every foreground refresh on the HTTP timeout.
// While open, CustomerInfo fails immediately with ErrPurchasesUnavailable.
type Guarded struct {
	next domain.PurchaseSource
	cfg  BreakerConfig
	now  func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
	trips    int
}

// NewGuarded creates a breaker around next.
func NewGuarded(next domain.PurchaseSource, cfg BreakerConfig) *Guarded {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	return &Guarded{next: next, cfg: cfg, now: time.Now}
}

// CustomerInfo fetches through the breaker.
func (g *Guarded) CustomerInfo(ctx context.Context) (domain.PurchaseFacts, error) {
	if err := g.allow(); err != nil {
		return domain.PurchaseFacts{}, err
	}
	facts, err := g.next.CustomerInfo(ctx)
	g.record(err)
	return facts, err
}

// State returns the current breaker state.
func (g *Guarded) State() BreakerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Trips returns how many times the breaker has opened.
func (g *Guarded) Trips() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trips
}

func (g *Guarded) allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case BreakerOpen:
		if g.now().Sub(g.openedAt) < g.cfg.Cooldown {
			return fmt.Errorf("%w: circuit open", domain.ErrPurchasesUnavailable)
		}
		g.state = BreakerHalfOpen
		g.probing = true
		return nil
	case BreakerHalfOpen:
		if g.probing {
			return fmt.Errorf("%w: trial fetch in flight", domain.ErrPurchasesUnavailable)
		}
		g.probing = true
	}
	return nil
}

func (g *Guarded) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.probing = false
	if err == nil {
		g.state = BreakerClosed
		g.failures = 0
		return
	}
	switch g.state {
	case BreakerClosed:
		g.failures++
		if g.failures >= g.cfg.FailureThreshold {
			g.open()
		}
	case BreakerHalfOpen:
		g.open()
	}
}

func (g *Guarded) open() {
	g.state = BreakerOpen
	g.openedAt = g.now()
	g.trips++
}
