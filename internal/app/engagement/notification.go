package engagement

import (
	"time"

	"github.com/sunflower-app/sunflower/internal/app/calendar"
	"github.com/sunflower-app/sunflower/internal/domain"
)

// SunReady decides whether the "sunflower has grown" notification fires.
//   - today's exposure strictly exceeds the goal
//   - the flower was not picked today
//   - no sun notification within the cooldown (strictly longer than it)
func SunReady(timeInSun time.Duration, st domain.EngagementState, now time.Time, p domain.Policy) domain.Eligibility {
	if timeInSun <= st.SunGoal {
		return domain.Eligibility{}
	}
	if !st.LastPickedDate.IsZero() && calendar.IsSameDay(now, st.LastPickedDate) {
		return domain.Eligibility{}
	}
	if !st.LastSunNotificationDate.IsZero() && now.Sub(st.LastSunNotificationDate) <= p.SunCooldown {
		return domain.Eligibility{}
	}
	return domain.Eligibility{Fire: true, Stamp: now}
}

// MorningSleep decides whether the good-morning notification fires: at most
// once per calendar day, and only once the last sleep sample ended after the
// morning cutoff today. A zero sampleEnd (no sleep data) never fires.
func MorningSleep(sampleEnd time.Time, st domain.EngagementState, now time.Time, p domain.Policy) domain.Eligibility {
	if !st.LastSleepNotificationDate.IsZero() && calendar.IsSameDay(now, st.LastSleepNotificationDate) {
		return domain.Eligibility{}
	}
	cutoff := calendar.AtClock(now, p.MorningCutoffHour, p.MorningCutoffMinute)
	if sampleEnd.IsZero() || !sampleEnd.After(cutoff) {
		return domain.Eligibility{}
	}
	return domain.Eligibility{Fire: true, Stamp: now}
}
