package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/quietbell/reminderd/internal/clock"
	"github.com/quietbell/reminderd/internal/models"
)

// ExactBackend is the precise one-shot path: an in-process timer per
// reminder. It fires on time but owns no durable state, so it is always
// paired with the queue backend.
type ExactBackend struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	fire    TriggerFunc
	clock   clock.Clock
	stopped bool
}

func NewExactBackend(fire TriggerFunc, clk clock.Clock) *ExactBackend {
	return &ExactBackend{
		timers: make(map[string]*time.Timer),
		fire:   fire,
		clock:  clk,
	}
}

func (b *ExactBackend) Arm(ctx context.Context, id string, fireAt time.Time, r *models.Reminder) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return ErrBackendUnavailable
	}

	if prev, ok := b.timers[id]; ok {
		prev.Stop()
	}

	delay := fireAt.Sub(b.clock.Now())
	if delay < 0 {
		delay = 0
	}
	b.timers[id] = time.AfterFunc(delay, func() {
		b.mu.Lock()
		delete(b.timers, id)
		b.mu.Unlock()
		b.fire(r, fireAt)
	})
	return nil
}

func (b *ExactBackend) Disarm(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.timers[id]; ok {
		t.Stop()
		delete(b.timers, id)
	}
	return nil
}

// Armed reports whether a timer is outstanding for id.
func (b *ExactBackend) Armed(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.timers[id]
	return ok
}

// Stop drops all timers and refuses further arming. Models the platform
// revoking the exact-timer facility; the scheduler keeps running on the
// durable path.
func (b *ExactBackend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
}
