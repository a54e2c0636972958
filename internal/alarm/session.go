package alarm

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/quietbell/reminderd/internal/models"
)

// Session is one presented alarm. It accepts exactly one resolution;
// later calls, including the auto-dismiss racing a user action, are
// no-ops.
type Session struct {
	reg      *Registry
	reminder *models.Reminder
	firedAt  time.Time
	handle   int
	release  func()
	timer    *time.Timer
	state    atomic.Int32 // Outcome
}

// Reminder returns the record this session is presenting.
func (s *Session) Reminder() *models.Reminder {
	return s.reminder
}

// Outcome returns the session's resolution state.
func (s *Session) Outcome() Outcome {
	return Outcome(s.state.Load())
}

// Dismiss resolves the session silently. Recurring reminders advance to
// their next occurrence; one-shots deactivate. Returns false if the
// session was already resolved.
func (s *Session) Dismiss(ctx context.Context) bool {
	return s.resolve(ctx, OutcomeDismissed)
}

// Snooze postpones the reminder by its snooze interval without touching
// its recurrence: the deferral is one-off and the repeat-derived next
// occurrence is computed from the original trigger time when the
// snoozed alarm eventually resolves.
func (s *Session) Snooze(ctx context.Context) bool {
	return s.resolve(ctx, OutcomeSnoozed)
}

// Complete resolves like Dismiss but also records a semantic completed
// event with the store.
func (s *Session) Complete(ctx context.Context) bool {
	return s.resolve(ctx, OutcomeCompleted)
}

func (s *Session) autoDismiss() {
	if s.resolve(context.Background(), OutcomeDismissed) {
		log.Printf("Alarm %s timed out, auto-dismissed", s.reminder.ID)
	}
}

func (s *Session) resolve(ctx context.Context, outcome Outcome) bool {
	// Single mutation point: first transition out of Pending wins.
	if !s.state.CompareAndSwap(int32(OutcomePending), int32(outcome)) {
		return false
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.reg.remove(s)
	// The wake hold spans until the resolution has fully settled,
	// whichever exit path ran.
	defer s.release()

	next := s.reg.finalize(ctx, s.reminder, outcome)
	s.reg.cfg.Surface.CloseAlarm(ctx, s.reminder, s.handle, outcome, next)
	return true
}
