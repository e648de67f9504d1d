package progress

import (
	"time"

	"github.com/studyassist/flashcard-hub/pkg/timeutil"
)

// ComputeStreak returns the consecutive-study-day streak after a session
// completed at now, given the previous study date and the current streak.
//
// Days are compared by calendar date in the location each timestamp carries,
// so callers normalize both values to the reference zone first.
//
//	no previous date  -> 1
//	same day          -> unchanged
//	next day          -> current + 1
//	gap or backdated  -> 1
func ComputeStreak(lastStudyDate *time.Time, currentStreak int, now time.Time) int {
	if lastStudyDate == nil || lastStudyDate.IsZero() {
		return 1
	}

	switch daysDiff := timeutil.CalendarDaysBetween(*lastStudyDate, now); {
	case daysDiff == 0:
		return currentStreak
	case daysDiff == 1:
		return currentStreak + 1
	default:
		return 1
	}
}
