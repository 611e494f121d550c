package domain

import (
	"time"

	"github.com/google/uuid"
)

// Policy holds the tunable thresholds behind the engagement rules.
type Policy struct {
	DefaultSunGoal time.Duration `json:"default_sun_goal"`

	// TrialDays is the trial length; the paywall is forced once more than
	// this many calendar days have passed since onboarding.
	TrialDays   int           `json:"trial_days"`
	PromoWindow time.Duration `json:"promo_window"`

	// Review prompt: first after FirstReviewLaunch launches, then
	// ReviewRetryLaunches launches after each decline.
	FirstReviewLaunch   int `json:"first_review_launch"`
	ReviewRetryLaunches int `json:"review_retry_launches"`

	SunCooldown         time.Duration `json:"sun_cooldown"`
	MorningCutoffHour   int           `json:"morning_cutoff_hour"`
	MorningCutoffMinute int           `json:"morning_cutoff_minute"`
}

// DefaultPolicy returns the production thresholds.
func DefaultPolicy() Policy {
	return Policy{
		DefaultSunGoal:      DefaultSunGoal,
		TrialDays:           3,
		PromoWindow:         24 * time.Hour,
		FirstReviewLaunch:   2,
		ReviewRetryLaunches: 10,
		SunCooldown:         4 * time.Hour,
		MorningCutoffHour:   4,
	}
}

// ─── Notification Types ─────────────────────────────────────────────────────

// NotificationType categorizes queued notifications.
type NotificationType string

const (
	NotifySunReady     NotificationType = "sun_ready"
	NotifyMorningSleep NotificationType = "morning_sleep"
)

// Notification is a queued user-facing push message. Delivery is external;
// the outbox only records what became eligible.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
	Shown     bool             `json:"shown"`
}

// NewNotification builds the canned message for a notification type.
func NewNotification(t NotificationType, at time.Time) Notification {
	n := Notification{ID: uuid.New(), Type: t, CreatedAt: at}
	switch t {
	case NotifySunReady:
		n.Title = "Sunflower has grown!"
		n.Body = "Don't forget to pick it!"
	case NotifyMorningSleep:
		n.Title = "Good Morning!"
		n.Body = "Morning sun is really important for a Healthy Sunflower"
	}
	return n
}

// Eligibility is the answer of a notification rule. When Fire is true,
// Stamp is the timestamp to persist as the new last-sent date.
type Eligibility struct {
	Fire  bool      `json:"fire"`
	Stamp time.Time `json:"stamp"`
}
