// internal/domain/ledger/ledger.go
package ledger

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry and the category it belongs to.
type TransactionType string

const (
	TypeIncome   TransactionType = "INCOME"
	TypeExpense  TransactionType = "EXPENSE"
	TypeTransfer TransactionType = "TRANSFER"
)

// Category groups ledger transactions. Unique per (user, name, type).
type Category struct {
	ID        string
	UserID    string
	Name      string
	Type      TransactionType
	Icon      string
	CreatedAt time.Time
}

// Account is a bank or mobile-money account transactions can be posted against.
type Account struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// Transaction is a single entry in the user's financial history.
type Transaction struct {
	ID          string
	UserID      string
	CategoryID  string
	AccountID   sql.NullString // NULL means cash
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	CreatedAt   time.Time
}
