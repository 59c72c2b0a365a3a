package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"time"

	"equb_tracker/internal/domain/notification"
	domainTelegram "equb_tracker/internal/domain/telegram"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Notifier persists in-app notifications and mirrors them to the owner's linked Telegram chat.
// The in-app row is the source of truth; Telegram delivery is best effort and never returns an error.
type Notifier struct {
	store          Store
	telegramClient domainTelegram.Client // nil disables mirroring
	logger         *logrus.Entry
	now            func() time.Time
}

func NewNotifier(store Store, tc domainTelegram.Client, logger *logrus.Entry) *Notifier {
	return &Notifier{
		store:          store,
		telegramClient: tc,
		logger:         logger,
		now:            time.Now,
	}
}

// Notify stores n and then tries to mirror it with the optional inline keyboard.
// Only the in-app persistence can fail the call.
func (n *Notifier) Notify(ctx context.Context, notif *notification.Notification, markup *telebot.ReplyMarkup) error {
	if notif.ID == "" {
		notif.ID = uuid.NewString()
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = n.now()
	}
	if err := n.store.Repos().Notifications.Create(ctx, notif); err != nil {
		return err
	}
	n.Mirror(ctx, notif, markup)
	return nil
}

// Mirror sends notif to the owner's Telegram chat and records the sent message id.
// It reports whether a message was delivered.
func (n *Notifier) Mirror(ctx context.Context, notif *notification.Notification, markup *telebot.ReplyMarkup) bool {
	if n.telegramClient == nil {
		return false
	}
	log := n.logger.WithFields(logrus.Fields{
		"user_id":         notif.UserID,
		"notification_id": notif.ID,
	})

	owner, err := n.store.Repos().Users.GetByID(ctx, notif.UserID)
	if err != nil {
		log.WithError(err).Warn("Could not load owner for Telegram mirror")
		return false
	}
	if !owner.TelegramLinked() {
		return false
	}
	chatID := owner.TelegramChatID.Int64

	text := fmt.Sprintf("<b>%s</b>\n\n%s", html.EscapeString(notif.Title), html.EscapeString(notif.Message))
	opts := &telebot.SendOptions{ParseMode: telebot.ModeHTML}
	if markup != nil {
		opts.ReplyMarkup = markup
	}

	messageID, err := n.telegramClient.SendMessage(chatID, text, opts)
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Warn("Failed to mirror notification to Telegram")
		return false
	}

	if err := n.store.Repos().Notifications.SetExternalMessageID(ctx, notif.ID, int64(messageID)); err != nil {
		log.WithError(err).Error("Telegram message sent but its id could not be recorded")
	}
	notif.ExternalMessageID = sql.NullInt64{Int64: int64(messageID), Valid: true}
	log.WithField("telegram_message_id", messageID).Debug("Notification mirrored to Telegram")
	return true
}

// Dismiss marks the notification read and removes its Telegram mirror, if any.
func (n *Notifier) Dismiss(ctx context.Context, notif *notification.Notification) error {
	if err := n.store.Repos().Notifications.MarkRead(ctx, notif.ID, notif.UserID); err != nil {
		return err
	}
	notif.Read = true
	n.deleteMirror(ctx, notif)
	return nil
}

// ResolveAction dismisses the open reminder for an action that has just been carried out.
func (n *Notifier) ResolveAction(ctx context.Context, userID, actionID string, actionType notification.ActionType) {
	notif, err := n.store.Repos().Notifications.FindUnreadByAction(ctx, userID, actionID, actionType)
	if err != nil {
		if !errors.Is(err, notification.ErrNotificationNotFound) {
			n.logger.WithError(err).WithField("action_id", actionID).Warn("Failed to look up open reminder")
		}
		return
	}
	if err := n.Dismiss(ctx, notif); err != nil {
		n.logger.WithError(err).WithField("notification_id", notif.ID).Warn("Failed to dismiss resolved reminder")
	}
}

func (n *Notifier) deleteMirror(ctx context.Context, notif *notification.Notification) {
	if n.telegramClient == nil || !notif.Mirrored() {
		return
	}
	log := n.logger.WithFields(logrus.Fields{
		"user_id":             notif.UserID,
		"notification_id":     notif.ID,
		"telegram_message_id": notif.ExternalMessageID.Int64,
	})

	owner, err := n.store.Repos().Users.GetByID(ctx, notif.UserID)
	if err != nil {
		log.WithError(err).Warn("Could not load owner to delete Telegram mirror")
		return
	}
	if !owner.TelegramLinked() {
		return
	}
	if err := n.telegramClient.DeleteMessage(owner.TelegramChatID.Int64, int(notif.ExternalMessageID.Int64)); err != nil {
		log.WithError(err).Warn("Failed to delete Telegram mirror")
	}
}
