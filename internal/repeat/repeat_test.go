package repeat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietbell/reminderd/internal/models"
	"github.com/quietbell/reminderd/internal/repeat"
)

func TestNext_Daily_KeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tz database unavailable")
	}

	// US DST starts 2026-03-08: the night between these two occurrences
	// is only 23 hours long.
	start := time.Date(2026, 3, 7, 9, 30, 0, 0, loc)

	next, err := repeat.Next(start, models.RepeatDaily)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 8, 9, 30, 0, 0, loc), next,
		"next day at the same local wall clock")
	assert.Equal(t, 23*time.Hour, next.Sub(start),
		"a calendar day across spring-forward is 23 elapsed hours")
}

func TestNext_Weekly(t *testing.T) {
	start := time.Date(2025, 12, 29, 18, 0, 0, 0, time.UTC)

	next, err := repeat.Next(start, models.RepeatWeekly)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 1, 5, 18, 0, 0, 0, time.UTC), next,
		"one calendar week later, across the year boundary")
}

func TestNext_Monthly_ClampsToLastValidDay(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "Jan 31 to Feb 28 in a common year",
			in:   time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC),
			want: time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "Jan 31 to Feb 29 in a leap year",
			in:   time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC),
			want: time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "Mar 31 to Apr 30",
			in:   time.Date(2025, 3, 31, 22, 15, 0, 0, time.UTC),
			want: time.Date(2025, 4, 30, 22, 15, 0, 0, time.UTC),
		},
		{
			name: "mid-month day is untouched",
			in:   time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC),
			want: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "December rolls into the next year",
			in:   time.Date(2025, 12, 31, 6, 0, 0, 0, time.UTC),
			want: time.Date(2026, 1, 31, 6, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repeat.Next(tc.in, models.RepeatMonthly)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNext_None_IsUndefined(t *testing.T) {
	_, err := repeat.Next(time.Now(), models.RepeatNone)
	assert.Error(t, err)
}

func TestNextOccurrence_SkipsSleptThroughOccurrences(t *testing.T) {
	trigger := time.Date(2025, 6, 1, 7, 45, 0, 0, time.UTC)
	after := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

	r := &models.Reminder{
		ID:          "rem-1",
		TriggerTime: trigger,
		RepeatMode:  models.RepeatDaily,
	}

	next, err := repeat.NextOccurrence(r, after)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 6, 12, 7, 45, 0, 0, time.UTC), next,
		"ten slept-through mornings are skipped, not replayed")
}

func TestNextOccurrence_SnoozedDeferralStepsFromAnchor(t *testing.T) {
	anchor := time.Date(2026, 2, 10, 8, 59, 0, 0, time.UTC)
	resolved := time.Date(2026, 2, 10, 9, 20, 0, 0, time.UTC)

	r := &models.Reminder{
		ID:           "rem-4",
		TriggerTime:  anchor.Add(15 * time.Minute), // snoozed to 09:14
		RepeatMode:   models.RepeatDaily,
		SeriesAnchor: &anchor,
	}

	next, err := repeat.NextOccurrence(r, resolved)
	require.NoError(t, err)

	assert.Equal(t, anchor.AddDate(0, 0, 1), next,
		"the series base is the pre-snooze time, so tomorrow rings at 08:59, not 09:14")
}

func TestNextOccurrence_CustomRule(t *testing.T) {
	r := &models.Reminder{
		ID:             "rem-2",
		TriggerTime:    time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
		RepeatMode:     models.RepeatCustom,
		RecurrenceRule: "RRULE:FREQ=DAILY;INTERVAL=2",
	}

	after := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)
	next, err := repeat.NextOccurrence(r, after)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC), next,
		"every-other-day series from Jan 1 lands on Jan 5")
}

func TestNextOccurrence_CustomRule_Invalid(t *testing.T) {
	r := &models.Reminder{
		ID:             "rem-3",
		TriggerTime:    time.Now(),
		RepeatMode:     models.RepeatCustom,
		RecurrenceRule: "FREQ=SOMETIMES",
	}

	_, err := repeat.NextOccurrence(r, time.Now())
	assert.Error(t, err)
}

func TestNext_IsDeterministic(t *testing.T) {
	in := time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC)
	first, err := repeat.Next(in, models.RepeatMonthly)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		again, err := repeat.Next(in, models.RepeatMonthly)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}
