package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/quietbell/reminderd/internal/alarm"
	"github.com/quietbell/reminderd/internal/models"
)

// ShowAlarm sends the intrusive alarm form: loud notification, action
// buttons. The message id is the presentation handle.
func (b *Bot) ShowAlarm(ctx context.Context, r *models.Reminder) (int, error) {
	chatID, err := ownerChatID(r)
	if err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, buildAlarmText(r))
	msg.DisableNotification = false

	snoozeLabel := "💤 Snooze"
	if r.SnoozeMinutes >= 1 {
		snoozeLabel = fmt.Sprintf("💤 Snooze %dm", r.SnoozeMinutes)
	}
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Dismiss", callbackDismiss+r.ID),
			tgbotapi.NewInlineKeyboardButtonData(snoozeLabel, callbackSnooze+r.ID),
			tgbotapi.NewInlineKeyboardButtonData("☑️ Done", callbackComplete+r.ID),
		),
	)

	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send alarm message: %w", err)
	}
	log.Printf("Sent alarm %s to chat %d (msg_id=%d)", r.ID, chatID, sent.MessageID)
	return sent.MessageID, nil
}

// CloseAlarm replaces the alarm message with its outcome and drops the
// buttons. Best effort; the user may have deleted the message.
func (b *Bot) CloseAlarm(ctx context.Context, r *models.Reminder, handle int, outcome alarm.Outcome, next *time.Time) {
	chatID, err := ownerChatID(r)
	if err != nil {
		return
	}

	text := buildAlarmText(r) + "\n\n" + outcomeLine(outcome, next)
	edit := tgbotapi.NewEditMessageText(chatID, handle, text)
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("Failed to close alarm message %d: %v", handle, err)
	}
}

// ShowQuiet sends the minimal silent form.
func (b *Bot) ShowQuiet(ctx context.Context, r *models.Reminder) error {
	chatID, err := ownerChatID(r)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, buildQuietText(r))
	msg.DisableNotification = true
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send quiet notification: %w", err)
	}
	return nil
}

// ShowMissed notifies about a reminder that came due while the engine
// was down.
func (b *Bot) ShowMissed(ctx context.Context, r *models.Reminder) {
	chatID, err := ownerChatID(r)
	if err != nil {
		log.Printf("Cannot surface missed reminder: %v", err)
		return
	}

	text := "⌛ Missed reminder\n\n" + titleOrFallback(r)
	text += "\n📅 was due " + r.TriggerTime.Format("2006-01-02 15:04")
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableNotification = true
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send missed notice for %s: %v", r.ID, err)
	}
}

func buildAlarmText(r *models.Reminder) string {
	var sb strings.Builder
	sb.WriteString("⏰ ")
	sb.WriteString(titleOrFallback(r))
	if r.Description != "" {
		sb.WriteString("\n\n")
		sb.WriteString(r.Description)
	}
	if r.IsRecurring() {
		sb.WriteString("\n\n🔄 ")
		sb.WriteString(repeatLine(r))
	}
	return sb.String()
}

func buildQuietText(r *models.Reminder) string {
	text := "🔔 " + titleOrFallback(r)
	if r.Description != "" {
		text += "\n" + r.Description
	}
	return text
}

func titleOrFallback(r *models.Reminder) string {
	if r.Title != "" {
		return r.Title
	}
	if r.Description != "" {
		return r.Description
	}
	return "Reminder"
}

func repeatLine(r *models.Reminder) string {
	switch r.RepeatMode {
	case models.RepeatDaily:
		return "every day"
	case models.RepeatWeekly:
		return "every week"
	case models.RepeatMonthly:
		return "every month"
	case models.RepeatCustom:
		return r.RecurrenceRule
	default:
		return "one-time"
	}
}

func outcomeLine(outcome alarm.Outcome, next *time.Time) string {
	switch outcome {
	case alarm.OutcomeSnoozed:
		if next != nil {
			return "💤 Snoozed until " + next.Format("15:04")
		}
		return "💤 Snoozed"
	case alarm.OutcomeCompleted:
		return "☑️ Done"
	default:
		if next != nil {
			return "✅ Dismissed, next at " + next.Format("2006-01-02 15:04")
		}
		return "✅ Dismissed"
	}
}
