package database

import (
	"context"
	"database/sql"
	"fmt"

	"equb_tracker/internal/domain/notification"

	"github.com/lib/pq"
)

const notificationColumns = `id, user_id, title, message, type, action_id, action_type, read, external_message_id, created_at`

type PostgresNotificationRepository struct {
	db dbtx
}

func NewPostgresNotificationRepository(db dbtx) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	query := `INSERT INTO notifications (` + notificationColumns + `)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.Type, n.ActionID, n.ActionType, n.Read, n.ExternalMessageID, n.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, constraintUnreadActionReminder) {
			return notification.ErrDuplicateReminder
		}
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id, userID string) (*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1 AND user_id = $2`
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notification.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error getting notification by ID: %w", err)
	}
	return n, nil
}

func (r *PostgresNotificationRepository) FindUnreadByAction(ctx context.Context, userID, actionID string, actionType notification.ActionType) (*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + `
               FROM notifications
               WHERE user_id = $1 AND action_id = $2 AND action_type = $3 AND NOT read
               LIMIT 1`
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, userID, actionID, actionType))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notification.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error finding unread notification for action %s: %w", actionID, err)
	}
	return n, nil
}

func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID string) ([]*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *PostgresNotificationRepository) ListUnreadByUser(ctx context.Context, userID string) ([]*notification.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1 AND NOT read ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *PostgresNotificationRepository) list(ctx context.Context, query string, args ...any) ([]*notification.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

func (r *PostgresNotificationRepository) SetExternalMessageID(ctx context.Context, id string, messageID int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET external_message_id = $1 WHERE id = $2`, messageID, id)
	if err != nil {
		return fmt.Errorf("error storing external message id: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("error marking notification read: %w", err)
	}
	return expectOneRow(res, notification.ErrNotificationNotFound)
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return fmt.Errorf("error marking all notifications read: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) DeleteUnreadByActionIDs(ctx context.Context, userID string, actionIDs []string) error {
	if len(actionIDs) == 0 {
		return nil
	}
	query := `DELETE FROM notifications WHERE user_id = $1 AND NOT read AND action_id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, userID, pq.Array(actionIDs)); err != nil {
		return fmt.Errorf("error deleting stale reminders: %w", err)
	}
	return nil
}

func scanNotification(row rowScanner) (*notification.Notification, error) {
	n := &notification.Notification{}
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.ActionID, &n.ActionType, &n.Read, &n.ExternalMessageID, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

var _ notification.Repository = (*PostgresNotificationRepository)(nil)
