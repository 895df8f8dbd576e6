package domain

import "time"

// All calendar-day arithmetic is UTC. Streak correctness depends on every
// caller agreeing on the same day boundary.

// DateOf truncates t to UTC midnight.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayWindow returns the half-open UTC window [midnight, next midnight)
// containing t.
func DayWindow(t time.Time) (time.Time, time.Time) {
	start := DateOf(t)
	return start, start.Add(24 * time.Hour)
}

// NextStreak applies the day-streak rule for a single completion.
//
// Only the first completion of a day can move the streak: it extends the
// streak when the previous day had activity, or starts a fresh one from zero.
// A first completion after a gap leaves a non-zero streak untouched; lapsed
// streaks are considered reset out of band, not by this rule.
func NextStreak(current int, firstToday, activeYesterday bool) int {
	if !firstToday {
		return current
	}
	if activeYesterday {
		return current + 1
	}
	if current == 0 {
		return 1
	}
	return current
}

// TimeOfDayBucket classifies the hour of t into the coarse buckets the
// suggestion provider understands.
func TimeOfDayBucket(t time.Time) string {
	switch hour := t.UTC().Hour(); {
	case hour < 12:
		return "morning"
	case hour < 17:
		return "afternoon"
	default:
		return "evening"
	}
}
