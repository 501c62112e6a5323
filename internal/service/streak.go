package service

import (
	"sort"
	"time"
)

// StreakResult carries the two streak counters derived from a user's
// completion history.
type StreakResult struct {
	Current int
	Longest int
}

// CalculateStreak derives the current and longest daily streaks from
// lesson completion timestamps. Days are compared in UTC, multiple
// completions on one day count once, and the current streak only
// counts when its most recent day is today or yesterday relative to
// now.
func CalculateStreak(completions []time.Time, now time.Time) StreakResult {
	if len(completions) == 0 {
		return StreakResult{}
	}

	// Collapse to unique UTC days, newest first.
	seen := make(map[time.Time]bool, len(completions))
	days := make([]time.Time, 0, len(completions))
	for _, t := range completions {
		day := toUTCDay(t)
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	var current, longest, run int
	leading := true
	for i, day := range days {
		if i == 0 {
			run = 1
		} else if days[i-1].Sub(day) == 24*time.Hour {
			run++
		} else {
			if run > longest {
				longest = run
			}
			run = 1
			leading = false
		}
		if leading {
			current = run
		}
	}
	if run > longest {
		longest = run
	}

	// The leading run is only "current" if it reaches today or
	// yesterday.
	today := toUTCDay(now)
	yesterday := today.AddDate(0, 0, -1)
	if !days[0].Equal(today) && !days[0].Equal(yesterday) {
		current = 0
	}

	return StreakResult{Current: current, Longest: longest}
}

func toUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
