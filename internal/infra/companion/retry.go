package companion

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sunflower-app/sunflower/internal/domain"
)

// RetryConfig configures relay retries.
type RetryConfig struct {
	MaxRetries int           // attempts before the pending update is dropped
	BaseDelay  time.Duration // initial backoff, doubled each retry
	MaxDelay   time.Duration // cap on backoff
}

// DefaultRetryConfig returns production retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 8,
		BaseDelay:  2 * time.Second,
		MaxDelay:   2 * time.Minute,
	}
}

// Retrying wraps a channel and re-sends failed updates with exponential
// backoff. Updates are latest-value: every field carries the generation of
// the newest value asked for and of the value the companion last accepted,
// and a field is pending while the two differ. Sends run outside the lock,
// so a delivery that completes late never clears a newer value.
type Retrying struct {
	mu   sync.Mutex
	next domain.CompanionChannel
	cfg  RetryConfig
	log  *zap.Logger
	now  func() time.Time

	latest domain.CompanionMessage // newest value per field
	want   map[string]uint64       // field -> generation of latest
	acked  map[string]uint64       // field -> generation the companion holds
	seq    uint64

	attempt   int
	nextRetry time.Time
	dropped   int64
}

// NewRetrying wraps next.
func NewRetrying(next domain.CompanionChannel, cfg RetryConfig, log *zap.Logger) *Retrying {
	return &Retrying{
		next:  next,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		want:  make(map[string]uint64),
		acked: make(map[string]uint64),
	}
}

// Send relays msg. On failure the fields stay pending for a later Flush and
// the error is returned so callers can count it.
func (r *Retrying) Send(ctx context.Context, msg domain.CompanionMessage) error {
	r.mu.Lock()
	r.seq++
	gen := r.seq
	sent := make(map[string]uint64, 4)
	for key := range Fields(msg) {
		copyField(&r.latest, msg, key)
		r.want[key] = gen
		sent[key] = gen
	}
	r.mu.Unlock()

	err := r.next.Send(ctx, msg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.ack(sent)
		return nil
	}
	if r.attempt == 0 && !r.nextRetry.After(r.now()) {
		r.schedule()
	}
	return err
}

// Flush re-sends every pending field in one update if the backoff has
// elapsed.
func (r *Retrying) Flush(ctx context.Context) {
	r.mu.Lock()
	if !r.pendingLocked() || r.now().Before(r.nextRetry) {
		r.mu.Unlock()
		return
	}
	var msg domain.CompanionMessage
	sent := make(map[string]uint64, 4)
	for key, gen := range r.want {
		if gen > r.acked[key] {
			copyField(&msg, r.latest, key)
			sent[key] = gen
		}
	}
	r.mu.Unlock()

	err := r.next.Send(ctx, msg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.ack(sent)
		r.attempt = 0
		return
	}

	r.attempt++
	if r.attempt >= r.cfg.MaxRetries {
		r.dropped++
		r.log.Warn("companion update dropped after retries",
			zap.Int("attempts", r.attempt),
			zap.Any("fields", Fields(msg)),
			zap.Error(err),
		)
		// Give up on what was sent; values merged since stay pending.
		for key, gen := range sent {
			if gen > r.acked[key] {
				r.acked[key] = gen
			}
		}
		r.attempt = 0
		return
	}
	r.schedule()
}

// Run flushes on every tick until ctx is done.
func (r *Retrying) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Pending reports whether any field is waiting for retry.
func (r *Retrying) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingLocked()
}

// PendingFields returns the fields waiting for retry.
func (r *Retrying) PendingFields() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var msg domain.CompanionMessage
	for key, gen := range r.want {
		if gen > r.acked[key] {
			copyField(&msg, r.latest, key)
		}
	}
	return Fields(msg)
}

// Dropped returns how many pending updates were abandoned.
func (r *Retrying) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Retrying) pendingLocked() bool {
	for key, gen := range r.want {
		if gen > r.acked[key] {
			return true
		}
	}
	return false
}

// ack records a successful delivery. The companion now holds exactly the
// delivered generation, even when it is older than one acked before:
// that newer value was overwritten and becomes pending again.
func (r *Retrying) ack(sent map[string]uint64) {
	for key, gen := range sent {
		r.acked[key] = gen
	}
}

// schedule sets the next retry using baseDelay * 2^attempt, capped.
// Caller holds r.mu.
func (r *Retrying) schedule() {
	delay := r.cfg.BaseDelay
	for i := 0; i < r.attempt; i++ {
		delay *= 2
		if delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
			break
		}
	}
	r.nextRetry = r.now().Add(delay)
}

// copyField copies one named field from src into dst.
func copyField(dst *domain.CompanionMessage, src domain.CompanionMessage, key string) {
	switch key {
	case fieldIsPro:
		dst.IsPro = src.IsPro
	case fieldSunGoal:
		dst.SunGoal = src.SunGoal
	case fieldTimeInSun:
		dst.TimeInSun = src.TimeInSun
	case fieldLastPicked:
		dst.LastSunflowerDate = src.LastSunflowerDate
	}
}
