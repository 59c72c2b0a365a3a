// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"equb_tracker/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const upcomingLimit = 3

var linkCodePattern = regexp.MustCompile(`^\d{6}$`)

const helpText = "I send you reminders when an Equb contribution is due.\n\n" +
	"/start <code> - link this chat using the 6-digit code from your Settings page\n" +
	"/equb - show your next pending contributions\n" +
	"/help - show this message\n\n" +
	"Tap \"✅ Pay now\" under a reminder to record the payment."

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	links *app.LinkService,
	equbs *app.EqubService,
	currency string,
	baseLogger *logrus.Entry, // For contextual logging
) {
	cmdLogger := baseLogger.WithField("handler_group", "commands")

	link := func(c telebot.Context, code string, logCtx *logrus.Entry) error {
		u, err := links.Link(ctx, code, c.Chat().ID)
		if err != nil {
			logCtx.WithError(err).WithField("kind", app.Kind(err)).Info("Link attempt rejected")
			return c.Send(app.UserMessage(err, "Something went wrong while linking. Please try again later."))
		}
		return c.Send(fmt.Sprintf("Welcome, %s! Your account is linked. I'll remind you here when a contribution is due.", u.DisplayName()))
	}

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := cmdLogger.WithField("command", "/start").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /start command")

		if code := strings.TrimSpace(c.Message().Payload); code != "" {
			return link(c, code, logCtx)
		}

		u, err := links.ResolveChat(ctx, c.Chat().ID)
		if err == nil {
			return c.Send(fmt.Sprintf("Hi %s! This chat is already linked. Use /equb to see what's due.", u.DisplayName()))
		}
		if !errors.Is(err, app.ErrTelegramNotLinked) {
			logCtx.WithError(err).Error("Error resolving chat for /start command")
			return c.Send("Something went wrong. Please try again later.")
		}
		return c.Send("Hi! Send me the 6-digit code from your Settings page to link this chat.")
	})

	// A bare 6-digit message is treated as a link code.
	b.Handle(telebot.OnText, func(c telebot.Context) error {
		text := strings.TrimSpace(c.Text())
		if !linkCodePattern.MatchString(text) {
			return c.Send("I didn't get that. Use /help to see what I can do.")
		}
		logCtx := cmdLogger.WithField("command", "code").WithField("sender_id", c.Sender().ID)
		return link(c, text, logCtx)
	})

	b.Handle("/equb", func(c telebot.Context) error {
		logCtx := cmdLogger.WithField("command", "/equb").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /equb command")

		u, err := links.ResolveChat(ctx, c.Chat().ID)
		if err != nil {
			return c.Send(app.UserMessage(err, "Something went wrong. Please try again later."))
		}

		upcoming, err := equbs.UpcomingContributions(ctx, u.ID, upcomingLimit)
		if err != nil {
			logCtx.WithError(err).Error("Failed to load upcoming contributions")
			return c.Send(app.UserMessage(err, "Something went wrong. Please try again later."))
		}
		if len(upcoming) == 0 {
			return c.Send("You have no pending Equb contributions 🎉")
		}

		var sb strings.Builder
		sb.WriteString("Upcoming Equb contributions:\n\n")
		for _, contribution := range upcoming {
			fmt.Fprintf(&sb, "• %s, cycle %d: %s %s due %s\n",
				contribution.EqubName, contribution.CycleNumber,
				app.FormatAmount(contribution.Amount), currency,
				contribution.DueDate.Format("Jan 2, 2006"))
		}
		return c.Send(sb.String())
	})

	b.Handle("/help", func(c telebot.Context) error {
		cmdLogger.WithField("command", "/help").WithField("sender_id", c.Sender().ID).Info("Processing /help command")
		return c.Send(helpText)
	})
}
