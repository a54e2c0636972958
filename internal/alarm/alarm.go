// Package alarm owns the user-facing alarm experience: the per-trigger
// session state machine, its auto-dismiss timeout, and the recurrence
// or deactivation bookkeeping that follows a resolution.
package alarm

import (
	"context"
	"time"

	"github.com/quietbell/reminderd/internal/clock"
	"github.com/quietbell/reminderd/internal/models"
)

// Outcome is the resolution state of a presented alarm. A session
// starts Pending and moves to exactly one terminal outcome.
type Outcome int32

const (
	OutcomePending Outcome = iota
	OutcomeDismissed
	OutcomeSnoozed
	OutcomeCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDismissed:
		return "dismissed"
	case OutcomeSnoozed:
		return "snoozed"
	case OutcomeCompleted:
		return "completed"
	default:
		return "pending"
	}
}

// Surface renders alarms and notifications. The engine never draws
// pixels itself; it requests presentation and receives the user's
// action back through the session registry.
type Surface interface {
	// ShowAlarm presents the intrusive alarm form and returns an opaque
	// handle used to close it later.
	ShowAlarm(ctx context.Context, r *models.Reminder) (handle int, err error)
	// CloseAlarm ends the presentation for a resolved session. next is
	// the rescheduled trigger time, if any. Best effort.
	CloseAlarm(ctx context.Context, r *models.Reminder, handle int, outcome Outcome, next *time.Time)
	// ShowQuiet presents the minimal non-intrusive form.
	ShowQuiet(ctx context.Context, r *models.Reminder) error
	// ShowMissed notifies about a reminder whose time passed while the
	// engine was down. Best effort.
	ShowMissed(ctx context.Context, r *models.Reminder)
}

// Store is the slice of the external reminder store the controller
// needs to persist resolutions.
type Store interface {
	UpdateReminder(ctx context.Context, r *models.Reminder) error
	MarkCompleted(ctx context.Context, id string, at time.Time) error
}

// Rescheduler arms the next occurrence after a resolution, or purges
// the remaining timer pair when there is none.
type Rescheduler interface {
	Schedule(ctx context.Context, r *models.Reminder) (degraded bool, err error)
	Cancel(ctx context.Context, id string) error
}

// Config wires the controller's collaborators explicitly; nothing is
// reached through package-level state.
type Config struct {
	Surface       Surface
	Store         Store
	Scheduler     Rescheduler
	Clock         clock.Clock
	DismissAfter  time.Duration // auto-dismiss timeout; an alarm never rings indefinitely
	DefaultSnooze time.Duration // used when the reminder carries no snooze setting
}
