package service

import (
	"time"

	"todo-planner/internal/model"
)

// NextOccurrence advances from by whole recurrence units until the result is
// strictly after now. Missed occurrences are skipped, not replayed. It
// reports false for patterns that do not advance (Custom or unknown).
func NextOccurrence(from time.Time, pattern model.Repeat, now time.Time) (time.Time, bool) {
	step := stepFor(pattern)
	if step == nil {
		return time.Time{}, false
	}
	next := step(from)
	for !next.After(now) {
		next = step(next)
	}
	return next, true
}

func stepFor(pattern model.Repeat) func(time.Time) time.Time {
	switch pattern {
	case model.RepeatDaily:
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	case model.RepeatWeekdays:
		return nextWeekday
	case model.RepeatWeekly:
		return func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
	case model.RepeatMonthly:
		return func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	case model.RepeatYearly:
		return func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }
	default:
		return nil
	}
}

func nextWeekday(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
