package engagement

import (
	"time"

	"github.com/sunflower-app/sunflower/internal/app/calendar"
	"github.com/sunflower-app/sunflower/internal/domain"
)

// Decide picks the single modal to present when the app becomes active.
// The returned Decision carries the updated state; the caller persists it.
//
// Order, first match wins:
//  1. onboarding date unset      → first-run paywall, onboarding starts now
//  2. trial elapsed, no purchase → forced paywall, promo countdown starts once
//  3. yesterday's streak lost    → streak-loss modal, at most once per day
//  4. enough launches, no review → review prompt
//
// A forced paywall replaces the whole app view, so the streak and review
// modals are not considered while it is up.
func Decide(st domain.EngagementState, streak domain.StreakResult, now time.Time, p domain.Policy) domain.Decision {
	d := domain.Decision{Modal: domain.ModalNone, State: st}

	if st.OnboardingDate.IsZero() {
		d.State.OnboardingDate = now
		d.Modal = domain.ModalPaywall
		d.FirstRun = true
		return d
	}

	if st.Entitlement == domain.EntitlementNone && trialElapsed(st.OnboardingDate, now, p) {
		if st.PromoOfferStartDate.IsZero() {
			d.State.PromoOfferStartDate = now
		}
		d.Modal = domain.ModalPaywall
		d.ForcedPaywall = true
		d.PromoOfferEndsAt = d.State.PromoOfferStartDate.Add(p.PromoWindow)
		d.PromoOfferActive = now.Before(d.PromoOfferEndsAt)
		return d
	}

	switch {
	case streakLost(streak) && !shownToday(st.LastStreakLossShownDate, now):
		d.State.LastStreakLossShownDate = now
		d.Modal = domain.ModalStreakLoss
	case !st.GaveReview && st.LaunchCount >= st.NextAlertLaunchCount:
		d.Modal = domain.ModalReview
	}
	return d
}

// RegisterLaunch counts one cold launch.
func RegisterLaunch(st domain.EngagementState) domain.EngagementState {
	st.LaunchCount++
	return st
}

// ResolveReview applies the user's answer to the review prompt.
// Declining restarts the launch count and pushes the next prompt out.
func ResolveReview(st domain.EngagementState, accepted bool, p domain.Policy) domain.EngagementState {
	if accepted {
		st.GaveReview = true
		return st
	}
	st.LaunchCount = 0
	st.NextAlertLaunchCount = p.ReviewRetryLaunches
	return st
}

func streakLost(s domain.StreakResult) bool {
	return s.YesterdayStreak > 0 && s.TodayStreak == 0
}

func shownToday(last, now time.Time) bool {
	return !last.IsZero() && calendar.IsSameDay(now, last)
}
