package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Constraint names referenced when mapping unique violations.
const (
	constraintCategoryUnique       = "categories_user_name_type_key"
	constraintUserTelegramChat     = "users_telegram_chat_id_key"
	constraintUnreadActionReminder = "notifications_unread_action_key"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                          TEXT PRIMARY KEY,
	name                        TEXT NOT NULL DEFAULT '',
	telegram_chat_id            BIGINT,
	telegram_verification_code  TEXT,
	created_at                  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at                  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT users_telegram_chat_id_key UNIQUE (telegram_chat_id)
);

CREATE TABLE IF NOT EXISTS accounts (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS categories (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	icon        TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT categories_user_name_type_key UNIQUE (user_id, name, type)
);

CREATE TABLE IF NOT EXISTS transactions (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	category_id  TEXT NOT NULL REFERENCES categories(id),
	account_id   TEXT REFERENCES accounts(id) ON DELETE SET NULL,
	type         TEXT NOT NULL,
	amount       NUMERIC(14, 2) NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	date         TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_user_account ON transactions(user_id, account_id);

CREATE TABLE IF NOT EXISTS equbs (
	id                   TEXT PRIMARY KEY,
	user_id              TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name                 TEXT NOT NULL,
	contribution_amount  NUMERIC(14, 2) NOT NULL CHECK (contribution_amount > 0),
	frequency            TEXT NOT NULL,
	start_date           TIMESTAMPTZ NOT NULL,
	total_cycles         INTEGER NOT NULL CHECK (total_cycles >= 1),
	payout_cycle         INTEGER NOT NULL CHECK (payout_cycle >= 1 AND payout_cycle <= total_cycles),
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_equbs_user ON equbs(user_id);

CREATE TABLE IF NOT EXISTS equb_contributions (
	id              TEXT PRIMARY KEY,
	equb_id         TEXT NOT NULL REFERENCES equbs(id) ON DELETE CASCADE,
	cycle_number    INTEGER NOT NULL,
	amount          NUMERIC(14, 2) NOT NULL,
	due_date        TIMESTAMPTZ NOT NULL,
	status          TEXT NOT NULL DEFAULT 'PENDING',
	transaction_id  TEXT REFERENCES transactions(id),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT equb_contributions_cycle_key UNIQUE (equb_id, cycle_number),
	CONSTRAINT equb_contributions_paid_linked CHECK (status <> 'PAID' OR transaction_id IS NOT NULL)
);
CREATE INDEX IF NOT EXISTS idx_equb_contributions_due ON equb_contributions(status, due_date);

CREATE TABLE IF NOT EXISTS equb_payouts (
	id              TEXT PRIMARY KEY,
	equb_id         TEXT NOT NULL UNIQUE REFERENCES equbs(id) ON DELETE CASCADE,
	amount          NUMERIC(14, 2) NOT NULL,
	due_date        TIMESTAMPTZ NOT NULL,
	status          TEXT NOT NULL DEFAULT 'PENDING',
	transaction_id  TEXT REFERENCES transactions(id),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT equb_payouts_received_linked CHECK (status <> 'RECEIVED' OR transaction_id IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS notifications (
	id                   TEXT PRIMARY KEY,
	user_id              TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title                TEXT NOT NULL,
	message              TEXT NOT NULL,
	type                 TEXT NOT NULL DEFAULT 'INFO',
	action_id            TEXT,
	action_type          TEXT NOT NULL DEFAULT '',
	read                 BOOLEAN NOT NULL DEFAULT FALSE,
	external_message_id  BIGINT,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS notifications_unread_action_key
	ON notifications(user_id, action_id, action_type)
	WHERE NOT read AND action_id IS NOT NULL;
`

// Migrate creates any missing tables and indexes. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
