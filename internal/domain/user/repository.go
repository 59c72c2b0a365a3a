package user

import (
	"context"
	"errors"
)

// Custom errors
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrDuplicateTelegramChat = errors.New("telegram chat is already linked to another user")
)

// Repository defines the operations for reading users and managing their Telegram link.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByTelegramChatID(ctx context.Context, chatID int64) (*User, error)
	GetByVerificationCode(ctx context.Context, code string) (*User, error)
	SetVerificationCode(ctx context.Context, id, code string) error
	// LinkTelegram stores the chat id and clears the verification code.
	LinkTelegram(ctx context.Context, id string, chatID int64) error
}
