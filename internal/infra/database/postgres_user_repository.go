package database

import (
	"context"
	"database/sql"
	"fmt"

	"equb_tracker/internal/domain/user"
)

const userColumns = `id, name, telegram_chat_id, telegram_verification_code, created_at, updated_at`

type PostgresUserRepository struct {
	db dbtx
}

func NewPostgresUserRepository(db dbtx) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) GetByTelegramChatID(ctx context.Context, chatID int64) (*user.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_chat_id = $1`, chatID)
}

func (r *PostgresUserRepository) GetByVerificationCode(ctx context.Context, code string) (*user.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_verification_code = $1`, code)
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, arg any) (*user.User, error) {
	u := &user.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.TelegramChatID, &u.TelegramVerificationCode, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) SetVerificationCode(ctx context.Context, id, code string) error {
	query := `UPDATE users SET telegram_verification_code = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, code, id)
	if err != nil {
		return fmt.Errorf("error setting verification code: %w", err)
	}
	return expectOneRow(res, user.ErrUserNotFound)
}

func (r *PostgresUserRepository) LinkTelegram(ctx context.Context, id string, chatID int64) error {
	query := `UPDATE users
               SET telegram_chat_id = $1, telegram_verification_code = NULL, updated_at = NOW()
               WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, chatID, id)
	if err != nil {
		if isUniqueViolation(err, constraintUserTelegramChat) {
			return user.ErrDuplicateTelegramChat
		}
		return fmt.Errorf("error linking telegram chat: %w", err)
	}
	return expectOneRow(res, user.ErrUserNotFound)
}

var _ user.Repository = (*PostgresUserRepository)(nil)
