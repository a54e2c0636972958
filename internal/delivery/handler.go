// Package delivery is the single funnel every timer fire passes through
// before a reminder is presented. Both scheduler backends call into it;
// it dedupes double fires, holds the wake resource for the duration of
// the presentation, and falls back to a quiet notification rather than
// failing closed.
package delivery

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/quietbell/reminderd/internal/models"
)

// seenCap bounds the dedup set; keys are pruned oldest-first beyond it.
const seenCap = 4096

// Presenter hands an accepted trigger to the presentation layer.
// DeliverAlarm takes ownership of release and must call it when the
// presentation resolves; on error the funnel keeps ownership.
type Presenter interface {
	DeliverAlarm(ctx context.Context, r *models.Reminder, firedAt time.Time, release func()) error
	DeliverQuiet(ctx context.Context, r *models.Reminder) error
}

type Handler struct {
	wake      *WakeLock
	presenter Presenter

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func NewHandler(wake *WakeLock) *Handler {
	return &Handler{
		wake: wake,
		seen: make(map[string]struct{}),
	}
}

// Bind sets the presenter. Must be called before any timer is armed.
func (h *Handler) Bind(p Presenter) {
	h.presenter = p
}

// HandleFire is the TriggerFunc both backends invoke. The first fire
// for a given (id, fireAt) wins; the redundant backend's fire is
// dropped silently.
func (h *Handler) HandleFire(r *models.Reminder, fireAt time.Time) {
	if !h.accept(r.ID, fireAt) {
		return
	}

	release := h.wake.Acquire("reminder " + r.ID)
	ctx := context.Background()

	if !r.AlarmStyle || r.Title == "" {
		// Quiet preference, or the alarm form cannot be constructed.
		defer release()
		if err := h.presenter.DeliverQuiet(ctx, r); err != nil {
			log.Printf("Failed to deliver quiet notification %s: %v", r.ID, err)
		}
		return
	}

	if err := h.presenter.DeliverAlarm(ctx, r, fireAt, release); err != nil {
		log.Printf("Failed to present alarm %s, falling back to quiet notification: %v", r.ID, err)
		defer release()
		if err := h.presenter.DeliverQuiet(ctx, r); err != nil {
			log.Printf("Failed to deliver quiet fallback %s: %v", r.ID, err)
		}
	}
}

// accept performs the atomic check-and-insert on the dedup key. Two
// near-simultaneous fires for the same key must not both pass.
func (h *Handler) accept(id string, fireAt time.Time) bool {
	key := fmt.Sprintf("%s|%d", id, fireAt.UnixMilli())

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, dup := h.seen[key]; dup {
		return false
	}
	h.seen[key] = struct{}{}
	h.order = append(h.order, key)
	for len(h.order) > seenCap {
		delete(h.seen, h.order[0])
		h.order = h.order[1:]
	}
	return true
}
