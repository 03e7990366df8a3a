package models

import "time"

// streakBonusPerDay and streakBonusCap control the daily streak bonus
const (
	streakBonusPerDay = 5
	streakBonusCap    = 50
)

// AdvanceStreak returns the streak counters after a quest completion on
// today, given the previous state. A completion on the same day leaves
// the streak unchanged, a completion the day after the last one extends
// it, and any gap resets it to 1.
func AdvanceStreak(current, longest int, last *time.Time, today time.Time) (newCurrent, newLongest int) {
	switch daysBetween(last, today) {
	case 0:
		newCurrent = current
		if newCurrent < 1 {
			newCurrent = 1
		}
	case 1:
		newCurrent = current + 1
	default:
		newCurrent = 1
	}

	newLongest = longest
	if newCurrent > newLongest {
		newLongest = newCurrent
	}
	return newCurrent, newLongest
}

// StreakBonus returns the display bonus for a streak: 5 coins per day of
// streak, capped at 50. The bonus is informational and never minted.
func StreakBonus(streak int) int {
	if streak <= 0 {
		return 0
	}
	bonus := streak * streakBonusPerDay
	if bonus > streakBonusCap {
		return streakBonusCap
	}
	return bonus
}

// daysBetween returns the calendar-day distance from last to today, or a
// large value when last is nil
func daysBetween(last *time.Time, today time.Time) int {
	if last == nil {
		return 1 << 30
	}
	from := dateOnly(last.In(today.Location()))
	to := dateOnly(today)
	return int(to.Sub(from) / (24 * time.Hour))
}

// dateOnly pins t's calendar date to midnight UTC, so a DST transition
// cannot make two adjacent days look closer or further than 24 hours
func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
