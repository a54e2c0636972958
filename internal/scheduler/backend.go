package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/quietbell/reminderd/internal/models"
)

// ErrBackendUnavailable is returned by Arm when a backend cannot accept
// timers (the platform denied the facility or the backend was stopped).
// A single unavailable backend degrades the scheduler, it does not stop
// it.
var ErrBackendUnavailable = errors.New("timer backend unavailable")

// TriggerFunc is invoked by a backend when a reminder's time arrives.
// fireAt is the armed target time, not the wall-clock instant the
// backend got around to firing; the delivery funnel dedupes on it.
type TriggerFunc func(r *models.Reminder, fireAt time.Time)

// Backend is one of the two independent timer facilities the scheduler
// hedges across. Arm replaces any previous timer for the same id;
// Disarm is idempotent.
type Backend interface {
	Arm(ctx context.Context, id string, fireAt time.Time, r *models.Reminder) error
	Disarm(ctx context.Context, id string) error
}
