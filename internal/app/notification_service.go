// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"

	"equb_tracker/internal/domain/equb"
	"equb_tracker/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

// ReminderChoice is the user's answer to an actionable reminder.
type ReminderChoice string

const (
	ChoiceYes ReminderChoice = "YES"
	ChoiceNo  ReminderChoice = "NO"
)

// NotificationService is the user's notification inbox.
type NotificationService struct {
	store       Store
	notifier    *Notifier
	settlements *SettlementService
	logger      *logrus.Entry
}

func NewNotificationService(store Store, notifier *Notifier, settlements *SettlementService, logger *logrus.Entry) *NotificationService {
	return &NotificationService{
		store:       store,
		notifier:    notifier,
		settlements: settlements,
		logger:      logger,
	}
}

func (s *NotificationService) ListNotifications(ctx context.Context, userID string) ([]*notification.Notification, error) {
	notifs, err := s.store.Repos().Notifications.ListByUser(ctx, userID)
	if err != nil {
		return nil, internalError("Failed to fetch notifications", err)
	}
	return notifs, nil
}

// DismissNotification marks one notification read and deletes its Telegram mirror.
// Unknown or foreign ids are ignored.
func (s *NotificationService) DismissNotification(ctx context.Context, userID, id string) error {
	notif, err := s.store.Repos().Notifications.GetByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			return nil
		}
		return internalError("Failed to delete notification", err)
	}
	if notif.Read {
		return nil
	}
	if err := s.notifier.Dismiss(ctx, notif); err != nil {
		return internalError("Failed to delete notification", err)
	}
	return nil
}

// DismissAll marks every notification read, removing any Telegram mirrors first.
func (s *NotificationService) DismissAll(ctx context.Context, userID string) error {
	repo := s.store.Repos().Notifications
	unread, err := repo.ListUnreadByUser(ctx, userID)
	if err != nil {
		return internalError("Failed to mark all as read", err)
	}
	for _, n := range unread {
		if n.Mirrored() {
			s.notifier.deleteMirror(ctx, n)
		}
	}
	if err := repo.MarkAllRead(ctx, userID); err != nil {
		return internalError("Failed to mark all as read", err)
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "count": len(unread)}).Info("All notifications marked read")
	return nil
}

// HandleReminderAction applies the user's answer to an actionable notification. YES performs the
// action (recording the contribution payment) and the reminder is dismissed as part of it; a failed
// payment leaves the reminder open. NO just dismisses.
func (s *NotificationService) HandleReminderAction(ctx context.Context, userID, id string, choice ReminderChoice) error {
	notif, err := s.store.Repos().Notifications.GetByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			return errNotificationNotFound
		}
		return internalError("Action failed", err)
	}

	switch choice {
	case ChoiceYes:
		if notif.Actionable() && notif.ActionType == notification.ActionMarkEqubPaid {
			if err := s.settlements.MarkContributionPaid(ctx, userID, notif.ActionID.String, ""); err != nil {
				return err
			}
		}
	case ChoiceNo:
	default:
		return &equb.ValidationError{Field: "choice", Message: fmt.Sprintf("Choice must be %s or %s", ChoiceYes, ChoiceNo)}
	}

	// Reload: a successful payment already dismissed the reminder.
	current, err := s.store.Repos().Notifications.GetByID(ctx, id, userID)
	if err != nil {
		return internalError("Action failed", err)
	}
	if current.Read {
		return nil
	}
	if err := s.notifier.Dismiss(ctx, current); err != nil {
		return internalError("Action failed", err)
	}
	return nil
}
