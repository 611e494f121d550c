// Package engagement implements the Sunflower engagement rules: pick
// streaks, growth classification, entitlement resolution, the foreground
// modal decision and notification eligibility. The rule functions are pure;
// Session owns the persisted state and serialises every read-decide-write.
package engagement

import (
	"slices"
	"time"

	"github.com/sunflower-app/sunflower/internal/app/calendar"
	"github.com/sunflower-app/sunflower/internal/domain"
)

// CalculateStreak derives today's and yesterday's streak from the pick
// ledger, evaluated as of now.
//
// A streak is a run of consecutive calendar days. A streak that ended
// yesterday is still alive today until the day ends, so it is carried
// into TodayStreak when there is no pick today yet.
func CalculateStreak(picks []time.Time, now time.Time) domain.StreakResult {
	var res domain.StreakResult
	if len(picks) == 0 {
		return res
	}

	days := slices.Clone(picks)
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })

	today := calendar.StartOfDay(now)
	yesterday := calendar.Yesterday(now)

	streak := 0
	var prev time.Time
	for i, d := range days {
		if i == 0 {
			streak = 1
		} else {
			switch gap := calendar.DaysBetween(prev, d); {
			case gap == 1:
				streak++
			case gap > 1:
				streak = 1
			}
			// gap == 0: duplicate day, ledger invariant violated; ignore
		}
		prev = d

		if calendar.IsSameDay(yesterday, d) {
			res.YesterdayStreak = streak
		}
		if calendar.IsSameDay(today, d) {
			res.TodayStreak = streak
		}
	}

	if res.YesterdayStreak > 0 && !calendar.IsSameDay(today, prev) {
		res.TodayStreak = res.YesterdayStreak
		res.Carried = true
	}
	return res
}
