// internal/infra/telegram/callback_handlers.go
package telegram

import (
	"context"

	"equb_tracker/internal/app"
	domainTelegram "equb_tracker/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterReminderCallbacks handles the inline buttons under mirrored Equb reminders.
func RegisterReminderCallbacks(
	ctx context.Context,
	b *telebot.Bot,
	links *app.LinkService,
	settlements *app.SettlementService,
	notifications *app.NotificationService,
	baseLogger *logrus.Entry,
) {
	b.Handle(&telebot.Btn{Unique: domainTelegram.CallbackPayContribution}, func(c telebot.Context) error {
		contributionID := c.Data()
		logCtx := baseLogger.WithFields(logrus.Fields{
			"handler":         domainTelegram.CallbackPayContribution,
			"sender_id":       c.Sender().ID,
			"contribution_id": contributionID,
		})

		u, err := links.ResolveChat(ctx, c.Chat().ID)
		if err != nil {
			logCtx.WithError(err).Warn("Pay callback from unresolved chat")
			return c.Respond(&telebot.CallbackResponse{Text: app.UserMessage(err, "Something went wrong."), ShowAlert: true})
		}

		// Cash payment; the web app is where an account is picked.
		if err := settlements.MarkContributionPaid(ctx, u.ID, contributionID, ""); err != nil {
			logCtx.WithError(err).WithField("kind", app.Kind(err)).Warn("Pay callback rejected")
			return c.Respond(&telebot.CallbackResponse{Text: app.UserMessage(err, "Payment could not be recorded."), ShowAlert: true})
		}
		logCtx.WithField("user_id", u.ID).Info("Contribution paid from Telegram")
		return c.Respond(&telebot.CallbackResponse{Text: "Payment recorded ✅"})
	})

	b.Handle(&telebot.Btn{Unique: domainTelegram.CallbackDismissNotification}, func(c telebot.Context) error {
		notificationID := c.Data()
		logCtx := baseLogger.WithFields(logrus.Fields{
			"handler":         domainTelegram.CallbackDismissNotification,
			"sender_id":       c.Sender().ID,
			"notification_id": notificationID,
		})

		u, err := links.ResolveChat(ctx, c.Chat().ID)
		if err != nil {
			logCtx.WithError(err).Warn("Dismiss callback from unresolved chat")
			return c.Respond(&telebot.CallbackResponse{Text: app.UserMessage(err, "Something went wrong.")})
		}

		if err := notifications.HandleReminderAction(ctx, u.ID, notificationID, app.ChoiceNo); err != nil {
			logCtx.WithError(err).Warn("Dismiss callback failed")
			return c.Respond(&telebot.CallbackResponse{Text: app.UserMessage(err, "Something went wrong.")})
		}
		return c.Respond(&telebot.CallbackResponse{Text: "OK, I'll remind you again."})
	})
}
