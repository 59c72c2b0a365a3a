package database

import (
	"context"
	"database/sql"
	"fmt"

	"equb_tracker/internal/domain/ledger"

	"github.com/shopspring/decimal"
)

type PostgresLedgerRepository struct {
	db dbtx
}

func NewPostgresLedgerRepository(db dbtx) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

func (r *PostgresLedgerRepository) FindCategory(ctx context.Context, userID, name string, typ ledger.TransactionType) (*ledger.Category, error) {
	query := `SELECT id, user_id, name, type, icon, created_at
               FROM categories
               WHERE user_id = $1 AND name = $2 AND type = $3`
	c := &ledger.Category{}
	err := r.db.QueryRowContext(ctx, query, userID, name, typ).Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.Icon, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("error finding category %q: %w", name, err)
	}
	return c, nil
}

func (r *PostgresLedgerRepository) CreateCategory(ctx context.Context, c *ledger.Category) error {
	query := `INSERT INTO categories (id, user_id, name, type, icon, created_at)
               VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.UserID, c.Name, c.Type, c.Icon, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, constraintCategoryUnique) {
			return ledger.ErrDuplicateCategory
		}
		return fmt.Errorf("error creating category: %w", err)
	}
	return nil
}

func (r *PostgresLedgerRepository) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	query := `INSERT INTO transactions (id, user_id, category_id, account_id, type, amount, description, date, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.CategoryID, t.AccountID, t.Type, t.Amount, t.Description, t.Date, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating transaction: %w", err)
	}
	return nil
}

func (r *PostgresLedgerRepository) GetTransaction(ctx context.Context, id, userID string) (*ledger.Transaction, error) {
	query := `SELECT id, user_id, category_id, account_id, type, amount, description, date, created_at
               FROM transactions
               WHERE id = $1 AND user_id = $2`
	t := &ledger.Transaction{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&t.ID, &t.UserID, &t.CategoryID, &t.AccountID, &t.Type, &t.Amount, &t.Description, &t.Date, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("error getting transaction by ID: %w", err)
	}
	return t, nil
}

func (r *PostgresLedgerRepository) GetAccount(ctx context.Context, id, userID string) (*ledger.Account, error) {
	query := `SELECT id, user_id, name, created_at FROM accounts WHERE id = $1 AND user_id = $2`
	a := &ledger.Account{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&a.ID, &a.UserID, &a.Name, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("error getting account by ID: %w", err)
	}
	return a, nil
}

func (r *PostgresLedgerRepository) ListAccounts(ctx context.Context, userID string) ([]*ledger.Account, error) {
	query := `SELECT id, user_id, name, created_at FROM accounts WHERE user_id = $1 ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*ledger.Account, 0)
	for rows.Next() {
		a := &ledger.Account{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

// AccountBalance ignores TRANSFER rows; they move money between accounts of the same user.
func (r *PostgresLedgerRepository) AccountBalance(ctx context.Context, accountID, userID string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(CASE WHEN type = $3 THEN amount WHEN type = $4 THEN -amount ELSE 0 END), 0)
               FROM transactions
               WHERE account_id = $1 AND user_id = $2`
	var balance decimal.Decimal
	err := r.db.QueryRowContext(ctx, query, accountID, userID, ledger.TypeIncome, ledger.TypeExpense).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error computing balance for account %s: %w", accountID, err)
	}
	return balance, nil
}

var _ ledger.Repository = (*PostgresLedgerRepository)(nil)
