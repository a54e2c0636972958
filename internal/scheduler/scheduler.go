// Package scheduler arms, re-arms and cancels reminder timers across
// two independent backends: a precise in-process one-shot timer and a
// durable database-backed delayed-task queue. Either backend may be
// silently dropped by the platform; arming both hedges against it. A
// double fire is resolved downstream by the delivery funnel, not here.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/quietbell/reminderd/internal/clock"
	"github.com/quietbell/reminderd/internal/models"
)

var (
	ErrInactive = errors.New("reminder is not active")
	ErrPastDue  = errors.New("reminder trigger time is not in the future")
)

// Rearm summarizes a ScheduleAllActive batch.
type Rearm struct {
	Scheduled int
	Degraded  int
	Failed    []string
	// Missed holds active reminders whose trigger time had already
	// passed at re-arm time. They are never armed silently; the caller
	// surfaces them through the missed path.
	Missed []*models.Reminder
}

type Scheduler struct {
	primary Backend
	backup  Backend
	clock   clock.Clock

	mu    sync.Mutex
	armed map[string]time.Time
}

func New(primary, backup Backend, clk clock.Clock) *Scheduler {
	return &Scheduler{
		primary: primary,
		backup:  backup,
		clock:   clk,
		armed:   make(map[string]time.Time),
	}
}

// Schedule arms both backends for r. It cancels any existing pair for
// r.ID first, so scheduling is last-write-wins per id and at most one
// pair is ever outstanding. degraded is true when only one path armed;
// that is a telemetry signal, not an error. An error is returned only
// when the reminder is unschedulable or both paths refused.
func (s *Scheduler) Schedule(ctx context.Context, r *models.Reminder) (degraded bool, err error) {
	if !r.Active {
		return false, fmt.Errorf("reminder %s: %w", r.ID, ErrInactive)
	}
	if !r.TriggerTime.After(s.clock.Now()) {
		return false, fmt.Errorf("reminder %s: %w", r.ID, ErrPastDue)
	}

	if err := s.Cancel(ctx, r.ID); err != nil {
		log.Printf("Cancel before arm failed for %s: %v", r.ID, err)
	}

	primaryErr := s.primary.Arm(ctx, r.ID, r.TriggerTime, r)
	backupErr := s.backup.Arm(ctx, r.ID, r.TriggerTime, r)

	if primaryErr != nil && backupErr != nil {
		return false, fmt.Errorf("failed to arm either path for %s: %v; %w", r.ID, primaryErr, backupErr)
	}
	if primaryErr != nil {
		log.Printf("Exact timer denied for %s, running degraded on queue path: %v", r.ID, primaryErr)
	}
	if backupErr != nil {
		log.Printf("Durable queue refused %s, running degraded on exact path: %v", r.ID, backupErr)
	}

	s.mu.Lock()
	s.armed[r.ID] = r.TriggerTime
	s.mu.Unlock()

	if backupErr == nil {
		s.notifyBackup()
	}
	return primaryErr != nil || backupErr != nil, nil
}

// notifier is implemented by backends that can be poked to re-check
// their queue outside the regular poll cadence.
type notifier interface {
	Notify()
}

// notifyBackup nudges the durable path after a mutation so its view
// converges immediately instead of at the next poll tick.
func (s *Scheduler) notifyBackup() {
	if n, ok := s.backup.(notifier); ok {
		n.Notify()
	}
}

// Cancel disarms both backends for id. It is idempotent and never fails
// when nothing was scheduled. A trigger already past the delivery
// funnel's dedup check is not retracted; cancel affects future
// occurrences only.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.armed, id)
	s.mu.Unlock()

	primaryErr := s.primary.Disarm(ctx, id)
	backupErr := s.backup.Disarm(ctx, id)
	if backupErr == nil {
		s.notifyBackup()
	}
	if primaryErr != nil {
		return fmt.Errorf("failed to disarm exact timer %s: %w", id, primaryErr)
	}
	if backupErr != nil {
		return fmt.Errorf("failed to disarm queued timer %s: %w", id, backupErr)
	}
	return nil
}

// Armed reports whether a timer pair is recorded for id. Inspection
// hook for the at-most-one-pair invariant.
func (s *Scheduler) Armed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.armed[id]
	return ok
}

// ArmedCount returns the number of ids with an outstanding pair.
func (s *Scheduler) ArmedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.armed)
}

// ScheduleAllActive re-arms every active reminder in the batch,
// tolerating individual failures. Reminders already past due are
// collected into the result instead of being armed.
func (s *Scheduler) ScheduleAllActive(ctx context.Context, reminders []*models.Reminder) Rearm {
	var res Rearm
	now := s.clock.Now()

	for _, r := range reminders {
		if !r.Active {
			continue
		}
		if !r.TriggerTime.After(now) {
			res.Missed = append(res.Missed, r)
			continue
		}
		degraded, err := s.Schedule(ctx, r)
		if err != nil {
			log.Printf("Failed to schedule reminder %s: %v", r.ID, err)
			res.Failed = append(res.Failed, r.ID)
			continue
		}
		res.Scheduled++
		if degraded {
			res.Degraded++
		}
	}
	return res
}
