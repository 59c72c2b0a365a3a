package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"equb_tracker/internal/domain/notification"
	"equb_tracker/internal/domain/user"

	"github.com/sirupsen/logrus"
)

const verificationCodeDigits = 6

// LinkService connects a user's account with a Telegram chat through a one-time code.
type LinkService struct {
	store    Store
	notifier *Notifier
	logger   *logrus.Entry
}

func NewLinkService(store Store, notifier *Notifier, logger *logrus.Entry) *LinkService {
	return &LinkService{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// IssueCode generates and stores a fresh 6-digit code the user sends to the bot.
func (s *LinkService) IssueCode(ctx context.Context, userID string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", internalError("Failed to generate code", err)
	}
	code := fmt.Sprintf("%0*d", verificationCodeDigits, n.Int64())

	if err := s.store.Repos().Users.SetVerificationCode(ctx, userID, code); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return "", newServiceError(ErrNotFound, "User not found")
		}
		return "", internalError("Failed to generate code", err)
	}
	s.logger.WithField("user_id", userID).Info("Telegram verification code issued")
	return code, nil
}

// Link attaches chatID to the user holding code, clears the code and confirms in-app and in the chat.
func (s *LinkService) Link(ctx context.Context, code string, chatID int64) (*user.User, error) {
	log := s.logger.WithField("chat_id", chatID)
	users := s.store.Repos().Users

	u, err := users.GetByVerificationCode(ctx, code)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			log.Info("Unknown verification code")
			return nil, errInvalidLinkCode
		}
		return nil, internalError("Failed to link Telegram", err)
	}

	if err := users.LinkTelegram(ctx, u.ID, chatID); err != nil {
		if errors.Is(err, user.ErrDuplicateTelegramChat) {
			return nil, errChatAlreadyLinked
		}
		return nil, internalError("Failed to link Telegram", err)
	}
	u.TelegramChatID.Int64, u.TelegramChatID.Valid = chatID, true
	u.TelegramVerificationCode.Valid = false
	log.WithField("user_id", u.ID).Info("Telegram chat linked")

	err = s.notifier.Notify(ctx, &notification.Notification{
		UserID:  u.ID,
		Title:   "Telegram Connected! 🤖",
		Message: fmt.Sprintf("Your Telegram account has been securely linked for reminders, %s.", u.DisplayName()),
		Type:    notification.TypeSuccess,
	}, nil)
	if err != nil {
		log.WithError(err).Warn("Linked, but the confirmation notification could not be stored")
	}
	return u, nil
}

// ResolveChat returns the user linked to chatID.
func (s *LinkService) ResolveChat(ctx context.Context, chatID int64) (*user.User, error) {
	u, err := s.store.Repos().Users.GetByTelegramChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, newServiceError(ErrTelegramNotLinked, "This chat is not linked yet. Send the 6-digit code from your Settings page.")
		}
		return nil, internalError("Failed to look up your account", err)
	}
	return u, nil
}
