package models

import "time"

// RepeatMode is the recurrence policy of a reminder.
type RepeatMode string

const (
	RepeatNone    RepeatMode = "none"
	RepeatDaily   RepeatMode = "daily"
	RepeatWeekly  RepeatMode = "weekly"
	RepeatMonthly RepeatMode = "monthly"
	// RepeatCustom uses an RFC 5545 RRULE carried in RecurrenceRule.
	RepeatCustom RepeatMode = "custom"
)

type Reminder struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	TriggerTime    time.Time  `json:"trigger_time"`
	RepeatMode     RepeatMode `json:"repeat_mode"`
	RecurrenceRule string     `json:"recurrence_rule"` // RFC 5545 RRULE, RepeatCustom only
	// SeriesAnchor preserves the recurrence base across a snooze: a
	// snoozed clone carries the pre-snooze trigger time here so the
	// repeat-derived next occurrence steps from the original series,
	// not from the deferral. Nil outside a snooze window.
	SeriesAnchor *time.Time `json:"series_anchor,omitempty"`
	Active         bool       `json:"active"`
	AlarmStyle     bool       `json:"alarm_style"` // intrusive alarm vs quiet notification
	SoundURI       string     `json:"sound_uri"`
	Vibrate        bool       `json:"vibrate"`
	Volume         int        `json:"volume"` // 0-100
	SnoozeMinutes  int        `json:"snooze_minutes"`
	CompletedAt    *time.Time `json:"completed_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsRecurring returns true if this reminder advances to a next occurrence
// after it resolves.
func (r *Reminder) IsRecurring() bool {
	return r.RepeatMode != "" && r.RepeatMode != RepeatNone
}

// SeriesBase returns the recurrence base: the pre-snooze trigger time for a
// snoozed deferral, the reminder's own trigger time otherwise.
func (r *Reminder) SeriesBase() time.Time {
	if r.SeriesAnchor != nil {
		return *r.SeriesAnchor
	}
	return r.TriggerTime
}

// Clone returns a shallow copy. Trigger-time rewrites (snooze, recurrence
// advance) operate on a copy so an in-flight presentation keeps the
// original record.
func (r *Reminder) Clone() *Reminder {
	c := *r
	return &c
}
