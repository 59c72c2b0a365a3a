// internal/app/reminder_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"equb_tracker/internal/domain/equb"
	"equb_tracker/internal/domain/notification"
	domainTelegram "equb_tracker/internal/domain/telegram"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// ReminderSweeper is driven by the scheduler once per cadence.
type ReminderSweeper interface {
	// SweepAll raises reminders for every user with due pending contributions.
	SweepAll(ctx context.Context) (int, error)
}

// ReminderOptions tunes the reminder sweep.
type ReminderOptions struct {
	Currency string
	Location *time.Location // decides where "today" ends
	// RetryMirror re-sends an existing unread reminder to Telegram when its earlier mirror failed.
	RetryMirror bool
}

// ReminderService raises one actionable reminder per due, unpaid contribution.
// Re-running it is safe: an unread reminder for the same contribution suppresses a new one.
type ReminderService struct {
	store    Store
	notifier *Notifier
	logger   *logrus.Entry
	opts     ReminderOptions
	now      func() time.Time
}

func NewReminderService(store Store, notifier *Notifier, logger *logrus.Entry, opts ReminderOptions) *ReminderService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &ReminderService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// CheckPendingEqubs creates reminders for the user's pending contributions due by the end of today
// and returns how many were created. Per-contribution failures are logged and collected; the sweep
// carries on with the remaining contributions.
func (s *ReminderService) CheckPendingEqubs(ctx context.Context, userID string) (int, error) {
	log := s.logger.WithField("user_id", userID)
	dueBy := endOfDay(s.now().In(s.opts.Location))

	due, err := s.store.Repos().Equbs.ListDueContributions(ctx, userID, dueBy)
	if err != nil {
		log.WithError(err).Error("Failed to list due contributions")
		return 0, internalError("Failed to check pending Equbs", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	created := 0
	var errs []error
	for _, c := range due {
		ok, err := s.remind(ctx, log, c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			created++
		}
	}

	log.WithFields(logrus.Fields{
		"due":     len(due),
		"created": created,
	}).Info("Pending Equb check finished")

	if len(errs) > 0 {
		return created, internalError("Some reminders could not be created", errors.Join(errs...))
	}
	return created, nil
}

func (s *ReminderService) remind(ctx context.Context, log *logrus.Entry, c *equb.Contribution) (bool, error) {
	log = log.WithField("contribution_id", c.ID)
	notifRepo := s.store.Repos().Notifications

	existing, err := notifRepo.FindUnreadByAction(ctx, c.UserID, c.ID, notification.ActionMarkEqubPaid)
	if err == nil {
		if s.opts.RetryMirror && !existing.Mirrored() {
			if s.notifier.Mirror(ctx, existing, reminderMarkup(c.ID, existing.ID)) {
				log.WithField("notification_id", existing.ID).Info("Re-sent reminder to Telegram")
			}
		}
		return false, nil
	}
	if !errors.Is(err, notification.ErrNotificationNotFound) {
		log.WithError(err).Error("Failed to check for an existing reminder")
		return false, fmt.Errorf("checking reminder for contribution %s: %w", c.ID, err)
	}

	reminder := &notification.Notification{
		ID:         uuid.NewString(),
		UserID:     c.UserID,
		Title:      "Equb Payment Due 🗓️",
		Message:    s.reminderMessage(c),
		Type:       notification.TypeEqubReminder,
		ActionID:   sql.NullString{String: c.ID, Valid: true},
		ActionType: notification.ActionMarkEqubPaid,
	}
	if err := s.notifier.Notify(ctx, reminder, reminderMarkup(c.ID, reminder.ID)); err != nil {
		if errors.Is(err, notification.ErrDuplicateReminder) {
			log.Info("Reminder created concurrently, skipping")
			return false, nil
		}
		log.WithError(err).Error("Failed to create reminder")
		return false, fmt.Errorf("creating reminder for contribution %s: %w", c.ID, err)
	}
	log.WithField("notification_id", reminder.ID).Info("Reminder created")
	return true, nil
}

func (s *ReminderService) reminderMessage(c *equb.Contribution) string {
	today := s.now().In(s.opts.Location)
	due := c.DueDate.In(s.opts.Location)
	when := "today"
	if y, m, d := due.Date(); y != today.Year() || m != today.Month() || d != today.Day() {
		when = "on " + due.Format("Jan 2, 2006")
	}
	return fmt.Sprintf("Your %s contribution of %s %s (Cycle %d) was due %s. Have you paid it?",
		c.EqubName, FormatAmount(c.Amount), s.opts.Currency, c.CycleNumber, when)
}

// SweepAll runs CheckPendingEqubs for every user with a due pending contribution.
func (s *ReminderService) SweepAll(ctx context.Context) (int, error) {
	dueBy := endOfDay(s.now().In(s.opts.Location))
	userIDs, err := s.store.Repos().Equbs.ListUsersWithDueContributions(ctx, dueBy)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list users with due contributions")
		return 0, internalError("Failed to sweep reminders", err)
	}

	total := 0
	var errs []error
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		n, err := s.CheckPendingEqubs(ctx, userID)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.WithFields(logrus.Fields{"users": len(userIDs), "created": total}).Info("Reminder sweep finished")
	return total, errors.Join(errs...)
}

// reminderMarkup is the inline keyboard under a mirrored reminder. "Pay now" re-enters
// MarkContributionPaid through the bot callback handler.
func reminderMarkup(contributionID, notificationID string) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	btnPay := markup.Data("✅ Pay now", domainTelegram.CallbackPayContribution, contributionID)
	btnDismiss := markup.Data("Not yet", domainTelegram.CallbackDismissNotification, notificationID)
	markup.Inline(markup.Row(btnPay, btnDismiss))
	return markup
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
