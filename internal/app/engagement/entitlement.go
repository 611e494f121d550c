package engagement

import (
	"time"

	"github.com/sunflower-app/sunflower/internal/app/calendar"
	"github.com/sunflower-app/sunflower/internal/domain"
)

// ResolveEntitlement maps purchase facts onto an entitlement tier.
// First match wins:
//  1. any active subscription  → subscription
//  2. any one-time purchase    → allTime
//  3. trial elapsed            → none
//  4. otherwise                → freeTrial
//
// The trial is elapsed once more than TrialDays calendar days have passed
// since onboarding. An unset onboarding date never expires the trial.
func ResolveEntitlement(facts domain.PurchaseFacts, onboarding, now time.Time, p domain.Policy) domain.Entitlement {
	switch {
	case len(facts.ActiveSubscriptions) > 0:
		return domain.EntitlementSubscription
	case len(facts.NonSubscriptions) > 0:
		return domain.EntitlementAllTime
	case trialElapsed(onboarding, now, p):
		return domain.EntitlementNone
	default:
		return domain.EntitlementFreeTrial
	}
}

// ExpireTrial demotes a free trial whose window has passed to none. It
// needs no purchase facts: a purchase would have resolved to a paid tier.
// Paid tiers are left alone until the next successful fetch.
func ExpireTrial(st domain.EngagementState, now time.Time, p domain.Policy) domain.EngagementState {
	if st.Entitlement == domain.EntitlementFreeTrial && trialElapsed(st.OnboardingDate, now, p) {
		st.Entitlement = domain.EntitlementNone
	}
	return st
}

func trialElapsed(onboarding, now time.Time, p domain.Policy) bool {
	return !onboarding.IsZero() && calendar.DaysSince(onboarding, now) > p.TrialDays
}
