package engagement

import (
	"math"
	"time"

	"github.com/sunflower-app/sunflower/internal/domain"
)

// Percentage returns exposure as a percentage of goal.
// A non-positive goal yields NaN, which Classify maps to sad.
func Percentage(exposure, goal time.Duration) float64 {
	if goal <= 0 {
		return math.NaN()
	}
	return exposure.Seconds() / goal.Seconds() * 100
}

// Classify maps a percentage-of-goal onto a growth state.
// Bands are half-open and the lowest match wins:
//
//	< 0 or NaN  sad
//	[0, 30)     sad
//	[30, 60)    mid
//	[60, 99)    happy
//	>= 99       grown
func Classify(pct float64) domain.GrowthState {
	switch {
	case math.IsNaN(pct) || pct < 30:
		return domain.GrowthSad
	case pct < 60:
		return domain.GrowthMid
	case pct < 99:
		return domain.GrowthHappy
	default:
		return domain.GrowthGrown
	}
}

// GrowthFor classifies today's exposure against the goal and attaches the
// animation profile. No exposure at all is always sad.
func GrowthFor(exposure, goal time.Duration) domain.Growth {
	if exposure <= 0 {
		return domain.Growth{State: domain.GrowthSad, Profile: domain.GrowthSad.Profile()}
	}

	pct := Percentage(exposure, goal)
	state := Classify(pct)
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		pct = 0
	}
	return domain.Growth{State: state, Percentage: pct, Profile: state.Profile()}
}
