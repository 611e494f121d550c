// Package domain holds the Sunflower engagement types.
// Daily sun exposure grows a sunflower; picking it once per day builds a
// streak; paid access is gated by an entitlement tier.
// Domain types are pure: no infrastructure dependency.
package domain

import (
	"fmt"
	"time"
)

// DefaultSunGoal is the daily sun-exposure goal used until the user picks one.
const DefaultSunGoal = 30 * time.Minute

// ─── Entitlement ────────────────────────────────────────────────────────────

// Entitlement is the user's current paid-access tier.
type Entitlement string

const (
	EntitlementNone         Entitlement = "none"
	EntitlementFreeTrial    Entitlement = "freeTrial"
	EntitlementSubscription Entitlement = "subscription"
	EntitlementAllTime      Entitlement = "allTime"
)

// IsValid reports whether e is one of the known tiers.
func (e Entitlement) IsValid() bool {
	switch e {
	case EntitlementNone, EntitlementFreeTrial, EntitlementSubscription, EntitlementAllTime:
		return true
	default:
		return false
	}
}

// IsEntitled is the boolean relayed to the companion device.
func (e Entitlement) IsEntitled() bool {
	return e != EntitlementNone
}

// PurchaseFacts is the raw purchase state fetched from the purchase backend.
type PurchaseFacts struct {
	ActiveSubscriptions []string `json:"active_subscriptions"`
	NonSubscriptions    []string `json:"non_subscriptions"`
}

// ─── Engagement State ───────────────────────────────────────────────────────

// EngagementState is the persisted per-user record read and written by the
// decision engine. A zero time.Time means "unset".
type EngagementState struct {
	OnboardingDate            time.Time     `json:"onboarding_date"`
	PromoOfferStartDate       time.Time     `json:"promo_offer_start_date"`
	LastPickedDate            time.Time     `json:"last_picked_date"`
	LastSunNotificationDate   time.Time     `json:"last_sun_notification_date"`
	LastSleepNotificationDate time.Time     `json:"last_sleep_notification_date"`
	LastStreakLossShownDate   time.Time     `json:"last_streak_loss_shown_date"`
	LaunchCount               int           `json:"launch_count"`
	NextAlertLaunchCount      int           `json:"next_alert_launch_count"`
	GaveReview                bool          `json:"gave_review"`
	SunGoal                   time.Duration `json:"sun_goal"`
	Entitlement               Entitlement   `json:"entitlement"`
	TimeInSun                 time.Duration `json:"time_in_sun"` // last sampled exposure, for widgets
}

// DefaultEngagementState returns the state of a fresh install.
func DefaultEngagementState(p Policy) EngagementState {
	return EngagementState{
		NextAlertLaunchCount: p.FirstReviewLaunch,
		SunGoal:              p.DefaultSunGoal,
		Entitlement:          EntitlementFreeTrial,
	}
}

// ─── Streak ─────────────────────────────────────────────────────────────────

// StreakResult is derived from the pick ledger on every read.
type StreakResult struct {
	TodayStreak     int  `json:"today_streak"`
	YesterdayStreak int  `json:"yesterday_streak"`
	Carried         bool `json:"carried"` // today's value carried over from yesterday, no pick yet today
}

// PickOutcome reports the result of recording today's pick.
type PickOutcome struct {
	Day           time.Time    `json:"day"`
	AlreadyPicked bool         `json:"already_picked"`
	Streak        StreakResult `json:"streak"`
	Increased     bool         `json:"increased"`
}

// ─── Growth ─────────────────────────────────────────────────────────────────

// GrowthState is the discrete stage of the sunflower animation.
type GrowthState int

const (
	GrowthSad GrowthState = iota
	GrowthMid
	GrowthHappy
	GrowthGrown
)

// GrowthProfile holds the animation endpoints for a growth state.
// Progress runs over the half-open interval [Start, End).
type GrowthProfile struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Speed float64 `json:"speed"`
}

var growthProfiles = [...]GrowthProfile{
	GrowthSad:   {Start: 0.00, End: 0.05, Speed: 0.7},
	GrowthMid:   {Start: 0.09, End: 0.13, Speed: 0.5},
	GrowthHappy: {Start: 0.22, End: 0.25, Speed: 0.5},
	GrowthGrown: {Start: 0.60, End: 1.00, Speed: 1.0},
}

var growthNames = [...]string{
	GrowthSad:   "sad",
	GrowthMid:   "mid",
	GrowthHappy: "happy",
	GrowthGrown: "grown",
}

// Profile returns the animation profile. Unknown states fall back to sad.
func (g GrowthState) Profile() GrowthProfile {
	if g < GrowthSad || g > GrowthGrown {
		return growthProfiles[GrowthSad]
	}
	return growthProfiles[g]
}

func (g GrowthState) String() string {
	if g < GrowthSad || g > GrowthGrown {
		return growthNames[GrowthSad]
	}
	return growthNames[g]
}

// MarshalText encodes the state by name.
func (g GrowthState) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText decodes a state name.
func (g *GrowthState) UnmarshalText(b []byte) error {
	for i, name := range growthNames {
		if name == string(b) {
			*g = GrowthState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown growth state %q", b)
}

// Growth is the classifier output handed to the animation layer.
// Percentage is always finite.
type Growth struct {
	State      GrowthState   `json:"state"`
	Percentage float64       `json:"percentage"`
	Profile    GrowthProfile `json:"profile"`
}

// ─── Decisions ──────────────────────────────────────────────────────────────

// Modal is the single modal the foreground decision asks the UI to present.
type Modal string

const (
	ModalNone       Modal = "none"
	ModalPaywall    Modal = "paywall"
	ModalStreakLoss Modal = "streak_loss"
	ModalReview     Modal = "review"
)

// Decision is the outcome of one foreground/launch evaluation.
type Decision struct {
	Modal            Modal           `json:"modal"`
	FirstRun         bool            `json:"first_run"`
	ForcedPaywall    bool            `json:"forced_paywall"` // non-dismissable
	PromoOfferActive bool            `json:"promo_offer_active"`
	PromoOfferEndsAt time.Time       `json:"promo_offer_ends_at"`
	State            EngagementState `json:"state"`
}

// EntitlementUpdate is returned by an entitlement refresh.
// Stale is set when purchase facts could not be fetched and the last
// persisted value was kept.
type EntitlementUpdate struct {
	Entitlement Entitlement `json:"entitlement"`
	Previous    Entitlement `json:"previous"`
	Stale       bool        `json:"stale"`
}

// Snapshot is a read-only view of the current engagement picture.
type Snapshot struct {
	State    EngagementState `json:"state"`
	Streak   StreakResult    `json:"streak"`
	Growth   Growth          `json:"growth"`
	Picks    int             `json:"picks"`
	TakenAt  time.Time       `json:"taken_at"`
	Entitled bool            `json:"entitled"`
}
