package user

import (
	"database/sql"
	"time"
)

// User is the owner of Equbs, ledger entries and notifications.
// Authentication happens outside this service; only the Telegram link is managed here.
type User struct {
	ID                       string
	Name                     string
	TelegramChatID           sql.NullInt64  // set once the chat is linked
	TelegramVerificationCode sql.NullString // pending 6-digit link code
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func (u *User) TelegramLinked() bool {
	return u.TelegramChatID.Valid && u.TelegramChatID.Int64 != 0
}

// DisplayName falls back to a friendly placeholder when no name is stored.
func (u *User) DisplayName() string {
	if u.Name == "" {
		return "friend"
	}
	return u.Name
}
