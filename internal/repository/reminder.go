package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quietbell/reminderd/internal/database"
	"github.com/quietbell/reminderd/internal/models"
)

const reminderColumns = `reminder_id, owner_id, title, description, trigger_time,
	repeat_mode, recurrence_rule, series_anchor, active, alarm_style, sound_uri,
	vibrate, volume, snooze_minutes, completed_at, created_at, updated_at`

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// GetActiveReminders returns every active reminder, soonest first. Used
// by the keep-alive guard to re-arm timers after a (re)start.
func (r *ReminderRepository) GetActiveReminders(ctx context.Context) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+`
		 FROM reminders WHERE active = true
		 ORDER BY trigger_time ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}

// GetReminder returns the reminder with the given id, or nil if it no
// longer exists.
func (r *ReminderRepository) GetReminder(ctx context.Context, id string) (*models.Reminder, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE reminder_id = $1`,
		id,
	)
	reminder, err := scanReminder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return reminder, nil
}

// UpdateReminder persists active flips, trigger-time rewrites and
// recurrence advances after a trigger resolves.
func (r *ReminderRepository) UpdateReminder(ctx context.Context, reminder *models.Reminder) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE reminders
		 SET title = $1, description = $2, trigger_time = $3, repeat_mode = $4,
		     recurrence_rule = $5, series_anchor = $6, active = $7, alarm_style = $8,
		     sound_uri = $9, vibrate = $10, volume = $11, snooze_minutes = $12,
		     updated_at = $13
		 WHERE reminder_id = $14`,
		reminder.Title, reminder.Description, reminder.TriggerTime, reminder.RepeatMode,
		reminder.RecurrenceRule, reminder.SeriesAnchor, reminder.Active, reminder.AlarmStyle,
		reminder.SoundURI, reminder.Vibrate, reminder.Volume, reminder.SnoozeMinutes,
		reminder.UpdatedAt, reminder.ID,
	)
	return err
}

// MarkCompleted records the semantic "completed" event, distinct from a
// silent dismiss.
func (r *ReminderRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE reminders SET completed_at = $1, updated_at = $1 WHERE reminder_id = $2`,
		at, id,
	)
	return err
}

func scanReminder(row pgx.Row) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	err := row.Scan(
		&reminder.ID, &reminder.OwnerID, &reminder.Title, &reminder.Description,
		&reminder.TriggerTime, &reminder.RepeatMode, &reminder.RecurrenceRule,
		&reminder.SeriesAnchor, &reminder.Active, &reminder.AlarmStyle,
		&reminder.SoundURI, &reminder.Vibrate, &reminder.Volume,
		&reminder.SnoozeMinutes, &reminder.CompletedAt,
		&reminder.CreatedAt, &reminder.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return reminder, nil
}
