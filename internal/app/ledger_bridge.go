package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"equb_tracker/internal/domain/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Categories the Equb settlement paths post into. Created on first use per user.
const (
	CategoryEqubContribution = "Equb Contribution"
	CategoryEqubPayout       = "Equb Payout"
)

var defaultCategoryIcons = map[ledger.TransactionType]string{
	ledger.TypeIncome:  "🎁",
	ledger.TypeExpense: "📅",
}

// LedgerEntry is what a settlement asks the ledger to record.
type LedgerEntry struct {
	CategoryID  string
	Type        ledger.TransactionType
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	AccountID   string // empty for cash
}

// LedgerBridge centralises "find or create the category, then post" for both settlement paths.
// Every call receives the repository to use so it can run inside a transaction.
type LedgerBridge struct {
	logger *logrus.Entry
	now    func() time.Time
}

func NewLedgerBridge(logger *logrus.Entry) *LedgerBridge {
	return &LedgerBridge{logger: logger, now: time.Now}
}

// ResolveOrCreateCategory returns the user's category with the given name and type, creating it
// only when the search finds nothing.
func (b *LedgerBridge) ResolveOrCreateCategory(ctx context.Context, repo ledger.Repository, userID, name string, typ ledger.TransactionType) (*ledger.Category, error) {
	category, err := repo.FindCategory(ctx, userID, name, typ)
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, ledger.ErrCategoryNotFound) {
		return nil, fmt.Errorf("failed to look up category %q: %w", name, err)
	}

	category = &ledger.Category{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Type:      typ,
		Icon:      defaultCategoryIcons[typ],
		CreatedAt: b.now(),
	}
	if err := repo.CreateCategory(ctx, category); err != nil {
		if errors.Is(err, ledger.ErrDuplicateCategory) {
			// Lost a race with a concurrent request; the winner's row is the one to use.
			return repo.FindCategory(ctx, userID, name, typ)
		}
		return nil, fmt.Errorf("failed to create category %q: %w", name, err)
	}

	b.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"category_id": category.ID,
		"category":    name,
	}).Info("Created default category")
	return category, nil
}

// PostEntry records a ledger transaction and returns it with its id set for linking.
func (b *LedgerBridge) PostEntry(ctx context.Context, repo ledger.Repository, userID string, entry LedgerEntry) (*ledger.Transaction, error) {
	txn := &ledger.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		CategoryID:  entry.CategoryID,
		Type:        entry.Type,
		Amount:      entry.Amount,
		Description: entry.Description,
		Date:        entry.Date,
		CreatedAt:   b.now(),
	}
	if entry.AccountID != "" {
		txn.AccountID = sql.NullString{String: entry.AccountID, Valid: true}
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to post %s transaction: %w", entry.Type, err)
	}
	return txn, nil
}
