// internal/domain/notification/notification.go
package notification

import (
	"database/sql"
	"time"
)

// Type controls how a notification is rendered and whether it carries an action.
type Type string

const (
	TypeInfo         Type = "INFO"
	TypeSuccess      Type = "SUCCESS"
	TypeWarning      Type = "WARNING"
	TypeEqubReminder Type = "EQUB_REMINDER" // reminder requiring the user to act
)

// ActionType tags what accepting an actionable notification does with its ActionID.
type ActionType string

const (
	ActionNone         ActionType = ""
	ActionMarkEqubPaid ActionType = "MARK_EQUB_PAID" // ActionID is a contribution id
)

// Notification is an in-app message, optionally mirrored to the user's linked Telegram chat.
// Corresponds to the 'notifications' table.
type Notification struct {
	ID                string
	UserID            string
	Title             string
	Message           string
	Type              Type
	ActionID          sql.NullString
	ActionType        ActionType
	Read              bool
	ExternalMessageID sql.NullInt64 // Telegram message id of the mirror, kept for delete-on-dismiss
	CreatedAt         time.Time
}

func (n *Notification) Actionable() bool {
	return n.ActionType != ActionNone && n.ActionID.Valid
}

func (n *Notification) Mirrored() bool {
	return n.ExternalMessageID.Valid
}
