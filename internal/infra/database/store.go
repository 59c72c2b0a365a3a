package database

import (
	"context"
	"database/sql"
	"fmt"

	"equb_tracker/internal/app"
)

// Store hands out Postgres repositories bound either to the pool or to a single transaction.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Repos() app.Repositories {
	return reposFor(s.db)
}

// WithinTx runs fn in one transaction; any error from fn rolls everything back.
func (s *Store) WithinTx(ctx context.Context, fn func(repos app.Repositories) error) error {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if err := fn(reposFor(txn)); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func reposFor(q dbtx) app.Repositories {
	return app.Repositories{
		Equbs:         NewPostgresEqubRepository(q),
		Ledger:        NewPostgresLedgerRepository(q),
		Notifications: NewPostgresNotificationRepository(q),
		Users:         NewPostgresUserRepository(q),
	}
}
