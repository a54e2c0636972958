package alarm

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/quietbell/reminderd/internal/models"
	"github.com/quietbell/reminderd/internal/repeat"
)

// Registry tracks live alarm sessions by reminder id so user actions
// arriving from the presentation surface can be routed to the session
// they belong to. It implements the delivery funnel's Presenter.
type Registry struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// DeliverAlarm opens a session for the trigger and starts its
// auto-dismiss timer. On error ownership of release stays with the
// caller, which falls back to the quiet form.
func (g *Registry) DeliverAlarm(ctx context.Context, r *models.Reminder, firedAt time.Time, release func()) error {
	handle, err := g.cfg.Surface.ShowAlarm(ctx, r)
	if err != nil {
		return err
	}

	s := &Session{
		reg:      g,
		reminder: r,
		firedAt:  firedAt,
		handle:   handle,
		release:  release,
	}

	g.mu.Lock()
	g.sessions[r.ID] = s
	g.mu.Unlock()

	s.timer = time.AfterFunc(g.cfg.DismissAfter, s.autoDismiss)
	log.Printf("Presenting alarm %s (auto-dismiss in %s)", r.ID, g.cfg.DismissAfter)
	return nil
}

// DeliverQuiet presents the non-intrusive form. A quiet notification
// has no user actions to wait for, so it resolves immediately as a
// dismiss: recurrence advances or the reminder deactivates.
func (g *Registry) DeliverQuiet(ctx context.Context, r *models.Reminder) error {
	if err := g.cfg.Surface.ShowQuiet(ctx, r); err != nil {
		return err
	}
	g.finalize(ctx, r, OutcomeDismissed)
	return nil
}

// HandleMissed surfaces a reminder whose time passed while no timers
// were armed, then advances or deactivates it like a dismissed trigger.
func (g *Registry) HandleMissed(ctx context.Context, r *models.Reminder) {
	g.cfg.Surface.ShowMissed(ctx, r)
	g.finalize(ctx, r, OutcomeDismissed)
}

// Lookup returns the live session for id, or nil. A miss is harmless:
// the user pressed a button on an already-resolved alarm.
func (g *Registry) Lookup(id string) *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sessions[id]
}

// remove drops s from the registry if it is still the registered
// session for its id. A later trigger for the same reminder must not be
// evicted by a stale session resolving.
func (g *Registry) remove(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessions[s.reminder.ID] == s {
		delete(g.sessions, s.reminder.ID)
	}
}

// finalize persists a resolution and arms whatever comes next. Returns
// the rescheduled trigger time, if any. Store and scheduler failures
// are logged, not propagated: a resolution must always complete
// locally.
func (g *Registry) finalize(ctx context.Context, r *models.Reminder, outcome Outcome) *time.Time {
	now := g.cfg.Clock.Now()

	if outcome == OutcomeSnoozed {
		next := r.Clone()
		if r.IsRecurring() && next.SeriesAnchor == nil {
			// The deferral moves TriggerTime; remember where the
			// series actually stands so the eventual dismiss or
			// complete advances from there.
			anchor := r.TriggerTime
			next.SeriesAnchor = &anchor
		}
		next.TriggerTime = now.Add(g.snoozeFor(r))
		next.UpdatedAt = now
		if err := g.cfg.Store.UpdateReminder(ctx, next); err != nil {
			log.Printf("Failed to persist snooze for %s: %v", r.ID, err)
		}
		if _, err := g.cfg.Scheduler.Schedule(ctx, next); err != nil {
			log.Printf("Failed to schedule snooze for %s: %v", r.ID, err)
			return nil
		}
		return &next.TriggerTime
	}

	if outcome == OutcomeCompleted {
		if err := g.cfg.Store.MarkCompleted(ctx, r.ID, now); err != nil {
			log.Printf("Failed to record completion for %s: %v", r.ID, err)
		}
	}

	if !r.IsRecurring() {
		g.deactivate(ctx, r, now)
		return nil
	}

	nextTime, err := repeat.NextOccurrence(r, now)
	if err != nil {
		log.Printf("Failed to compute next occurrence for %s, deactivating: %v", r.ID, err)
		g.deactivate(ctx, r, now)
		return nil
	}

	next := r.Clone()
	next.TriggerTime = nextTime
	next.SeriesAnchor = nil // the deferral, if any, is over
	next.UpdatedAt = now
	if err := g.cfg.Store.UpdateReminder(ctx, next); err != nil {
		log.Printf("Failed to persist recurrence advance for %s: %v", r.ID, err)
	}
	if _, err := g.cfg.Scheduler.Schedule(ctx, next); err != nil {
		log.Printf("Failed to schedule next occurrence for %s: %v", r.ID, err)
		return nil
	}
	return &next.TriggerTime
}

// deactivate flips the reminder off and purges any timer half still
// armed, keeping the inactive-means-unarmed invariant.
func (g *Registry) deactivate(ctx context.Context, r *models.Reminder, now time.Time) {
	done := r.Clone()
	done.Active = false
	done.UpdatedAt = now
	if err := g.cfg.Store.UpdateReminder(ctx, done); err != nil {
		log.Printf("Failed to deactivate reminder %s: %v", r.ID, err)
	}
	if err := g.cfg.Scheduler.Cancel(ctx, r.ID); err != nil {
		log.Printf("Failed to cancel timers for %s: %v", r.ID, err)
	}
}

func (g *Registry) snoozeFor(r *models.Reminder) time.Duration {
	if r.SnoozeMinutes >= 1 {
		return time.Duration(r.SnoozeMinutes) * time.Minute
	}
	return g.cfg.DefaultSnooze
}
