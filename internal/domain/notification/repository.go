// internal/domain/notification/repository.go
package notification

import (
	"context"
	"errors"
)

// Custom errors
var (
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrDuplicateReminder is returned by Create when an unread reminder already exists for the same action.
	ErrDuplicateReminder = errors.New("unread reminder already exists for this action")
)

// Repository defines the persistence operations for notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id, userID string) (*Notification, error)
	// FindUnreadByAction returns the unread notification for (user, actionID, actionType), if any.
	FindUnreadByAction(ctx context.Context, userID, actionID string, actionType ActionType) (*Notification, error)
	ListByUser(ctx context.Context, userID string) ([]*Notification, error) // newest first
	ListUnreadByUser(ctx context.Context, userID string) ([]*Notification, error)
	SetExternalMessageID(ctx context.Context, id string, messageID int64) error
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	// DeleteUnreadByActionIDs removes stale unread reminders pointing at the given action ids.
	DeleteUnreadByActionIDs(ctx context.Context, userID string, actionIDs []string) error
}
