// Package repeat computes the next occurrence of a recurring reminder.
// The fixed modes (daily/weekly/monthly) are pure calendar arithmetic;
// custom RFC 5545 rules go through rrule-go.
package repeat

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/quietbell/reminderd/internal/models"
)

// maxAdvance bounds the catch-up search when a reminder resolved long
// after its trigger time.
const maxAdvance = 1000

// Next returns the occurrence one period after t for the given mode.
// It is deterministic and side-effect free. Daily and weekly steps keep
// the wall-clock hour/minute in t's location across DST boundaries;
// monthly steps clamp to the last valid day of the target month
// (Jan 31 -> Feb 28/29).
func Next(t time.Time, mode models.RepeatMode) (time.Time, error) {
	switch mode {
	case models.RepeatDaily:
		return t.AddDate(0, 0, 1), nil
	case models.RepeatWeekly:
		return t.AddDate(0, 0, 7), nil
	case models.RepeatMonthly:
		return addMonthClamped(t), nil
	default:
		return time.Time{}, fmt.Errorf("repeat mode %q has no next occurrence", mode)
	}
}

// addMonthClamped adds one calendar month without the normalization
// time.AddDate would apply (Jan 31 + 1 month must not become Mar 2/3).
func addMonthClamped(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month()+1, 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	day := t.Day()
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextOccurrence returns the first occurrence of r strictly after the
// given instant, stepping from the series base (the pre-snooze trigger
// time for a snoozed deferral, so a snooze never shifts the series). A
// reminder that resolved late skips the occurrences it slept through
// instead of firing them in a burst.
func NextOccurrence(r *models.Reminder, after time.Time) (time.Time, error) {
	base := r.SeriesBase()
	if r.RepeatMode == models.RepeatCustom {
		return nextFromRule(r.RecurrenceRule, base, after)
	}

	t := base
	for i := 0; i < maxAdvance; i++ {
		next, err := Next(t, r.RepeatMode)
		if err != nil {
			return time.Time{}, err
		}
		if next.After(after) {
			return next, nil
		}
		t = next
	}
	return time.Time{}, fmt.Errorf("no occurrence of reminder %s after %s", r.ID, after)
}

// nextFromRule evaluates an RFC 5545 RRULE anchored at dtstart.
func nextFromRule(ruleStr string, dtstart, after time.Time) (time.Time, error) {
	ruleStr = strings.TrimPrefix(ruleStr, "RRULE:")

	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse RRULE: %w", err)
	}
	opt.Dtstart = dtstart

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to build RRULE: %w", err)
	}

	next := rule.After(after, false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("rule %q has no occurrence after %s", ruleStr, after)
	}
	return next, nil
}
