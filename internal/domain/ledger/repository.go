package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Custom errors
var (
	ErrCategoryNotFound    = errors.New("category not found")
	ErrDuplicateCategory   = errors.New("category with this name and type already exists")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Repository is the ledger store consumed by the Equb core.
type Repository interface {
	FindCategory(ctx context.Context, userID, name string, typ TransactionType) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) error
	CreateTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id, userID string) (*Transaction, error)

	GetAccount(ctx context.Context, id, userID string) (*Account, error)
	ListAccounts(ctx context.Context, userID string) ([]*Account, error)
	// AccountBalance is the sum of the account's INCOME minus its EXPENSE transactions.
	AccountBalance(ctx context.Context, accountID, userID string) (decimal.Decimal, error)
}
