package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quietbell/reminderd/internal/clock"
	"github.com/quietbell/reminderd/internal/database"
	"github.com/quietbell/reminderd/internal/models"
)

// queuePool is the slice of pgxpool.Pool the queue backend uses.
type queuePool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// QueueBackend is the durable path: one row per armed reminder in the
// timer_queue table, drained by a polling loop. It survives process
// restarts at the cost of poll-interval precision.
type QueueBackend struct {
	pool     queuePool
	fire     TriggerFunc
	clock    clock.Clock
	interval time.Duration
	notifyCh chan struct{}
}

func NewQueueBackend(db *database.DB, fire TriggerFunc, clk clock.Clock, interval time.Duration) *QueueBackend {
	return &QueueBackend{
		pool:     db.Pool,
		fire:     fire,
		clock:    clk,
		interval: interval,
		notifyCh: make(chan struct{}, 1),
	}
}

func (b *QueueBackend) Arm(ctx context.Context, id string, fireAt time.Time, r *models.Reminder) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode reminder %s: %w", id, err)
	}

	_, err = b.pool.Exec(ctx,
		`INSERT INTO timer_queue (reminder_id, fire_at, payload, enqueued_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (reminder_id)
		 DO UPDATE SET fire_at = $2, payload = $3, enqueued_at = $4`,
		id, fireAt, payload, b.clock.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue reminder %s: %w", id, err)
	}
	return nil
}

func (b *QueueBackend) Disarm(ctx context.Context, id string) error {
	_, err := b.pool.Exec(ctx,
		`DELETE FROM timer_queue WHERE reminder_id = $1`, id,
	)
	return err
}

// Notify triggers an immediate check. Non-blocking if a check is already pending.
func (b *QueueBackend) Notify() {
	select {
	case b.notifyCh <- struct{}{}:
	default:
		// Channel already has a pending notification, skip
	}
}

// Run polls for due rows until ctx is cancelled. Transient query errors
// are logged and retried on the next tick.
func (b *QueueBackend) Run(ctx context.Context) error {
	log.Printf("Timer queue started (poll interval %s)", b.interval)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.dispatchDue(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Timer queue stopped")
			return ctx.Err()
		case <-ticker.C:
			b.dispatchDue(ctx)
		case <-b.notifyCh:
			b.dispatchDue(ctx)
		}
	}
}

func (b *QueueBackend) dispatchDue(ctx context.Context) {
	now := b.clock.Now()
	rows, err := b.pool.Query(ctx,
		`SELECT reminder_id, fire_at, payload FROM timer_queue
		 WHERE fire_at <= $1 ORDER BY fire_at ASC`,
		now,
	)
	if err != nil {
		log.Printf("Failed to query due timers: %v", err)
		return
	}

	type dueRow struct {
		id      string
		fireAt  time.Time
		payload []byte
	}
	var due []dueRow
	for rows.Next() {
		var d dueRow
		if err := rows.Scan(&d.id, &d.fireAt, &d.payload); err != nil {
			log.Printf("Failed to scan due timer: %v", err)
			continue
		}
		due = append(due, d)
	}
	rows.Close()

	for _, d := range due {
		// Delete before dispatch so a slow presentation cannot make the
		// next poll fire the same row again. The exact path is the
		// hedge against losing the dispatch mid-flight.
		if _, err := b.pool.Exec(ctx,
			`DELETE FROM timer_queue WHERE reminder_id = $1 AND fire_at = $2`,
			d.id, d.fireAt,
		); err != nil {
			log.Printf("Failed to dequeue timer %s: %v", d.id, err)
			continue
		}

		reminder := &models.Reminder{}
		if err := json.Unmarshal(d.payload, reminder); err != nil {
			log.Printf("Failed to decode timer payload %s: %v", d.id, err)
			continue
		}
		b.fire(reminder, d.fireAt)
	}
}
