// Package bot adapts the engine's presentation surface onto Telegram.
// An intrusive alarm is a message with Dismiss/Snooze/Done inline
// buttons; a quiet notification is a silent plain message. The update
// loop routes button presses back into the live alarm sessions.
package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/quietbell/reminderd/internal/alarm"
	"github.com/quietbell/reminderd/internal/models"
)

const (
	callbackDismiss  = "alarm:dismiss:"
	callbackSnooze   = "alarm:snooze:"
	callbackComplete = "alarm:done:"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	sessions *alarm.Registry
}

func New(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &Bot{api: api}, nil
}

// Bind attaches the session registry. Must be called before Start and
// before any alarm is presented.
func (b *Bot) Bind(sessions *alarm.Registry) {
	b.sessions = sessions
}

func (b *Bot) Start(ctx context.Context) error {
	log.Printf("Authorized on account %s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery == nil {
		return
	}
	b.handleCallback(ctx, update.CallbackQuery)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	var verb, id string
	switch {
	case strings.HasPrefix(cb.Data, callbackDismiss):
		verb, id = "dismiss", strings.TrimPrefix(cb.Data, callbackDismiss)
	case strings.HasPrefix(cb.Data, callbackSnooze):
		verb, id = "snooze", strings.TrimPrefix(cb.Data, callbackSnooze)
	case strings.HasPrefix(cb.Data, callbackComplete):
		verb, id = "done", strings.TrimPrefix(cb.Data, callbackComplete)
	default:
		b.answerCallback(cb.ID, "")
		return
	}

	s := b.sessions.Lookup(id)
	if s == nil {
		// Stale button on an already-resolved alarm.
		b.answerCallback(cb.ID, "This alarm is already resolved")
		return
	}

	var accepted bool
	switch verb {
	case "snooze":
		accepted = s.Snooze(ctx)
	case "done":
		accepted = s.Complete(ctx)
	default:
		accepted = s.Dismiss(ctx)
	}

	if accepted {
		b.answerCallback(cb.ID, "")
	} else {
		b.answerCallback(cb.ID, "This alarm is already resolved")
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}
}

// ownerChatID maps a reminder's owner to its Telegram chat.
func ownerChatID(r *models.Reminder) (int64, error) {
	chatID, err := strconv.ParseInt(r.OwnerID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("reminder %s has no routable owner %q: %w", r.ID, r.OwnerID, err)
	}
	return chatID, nil
}
