package equb

import (
	"context"
	"errors"
	"time"
)

// Custom errors
var (
	ErrEqubNotFound         = errors.New("equb not found")
	ErrContributionNotFound = errors.New("equb contribution not found")
	ErrPayoutNotFound       = errors.New("equb payout not found")
	// ErrNotPending is returned by the settle methods when the row was no longer pending at write time.
	ErrNotPending = errors.New("equb item is no longer pending")
)

// Repository defines the persistence operations for Equbs and their schedule.
// Every lookup is scoped to the owning user; rows owned by someone else are reported as not found.
type Repository interface {
	// Create inserts the Equb, all of its Contributions and its Payout. IDs are assigned by the caller.
	Create(ctx context.Context, e *Equb) error
	GetByID(ctx context.Context, id, userID string) (*Equb, error)
	ListByUser(ctx context.Context, userID string) ([]*Equb, error) // newest first, contributions by cycle
	Delete(ctx context.Context, id, userID string) error
	// LockSchedule locks the Equb's contribution and payout rows for the rest of the transaction
	// and reports whether any of them is already settled.
	LockSchedule(ctx context.Context, equbID string) (settled bool, err error)

	GetContribution(ctx context.Context, id, userID string) (*Contribution, error)
	// SettleContribution flips a PENDING contribution to PAID and links the ledger transaction.
	SettleContribution(ctx context.Context, id, transactionID string) error
	GetPayout(ctx context.Context, id, userID string) (*Payout, error)
	// SettlePayout flips a PENDING payout to RECEIVED and links the ledger transaction.
	SettlePayout(ctx context.Context, id, transactionID string) error

	// ListDueContributions returns the user's PENDING contributions due at or before dueBy.
	ListDueContributions(ctx context.Context, userID string, dueBy time.Time) ([]*Contribution, error)
	// ListUsersWithDueContributions returns the distinct owners having any PENDING contribution due at or before dueBy.
	ListUsersWithDueContributions(ctx context.Context, dueBy time.Time) ([]string, error)
	ListUpcomingContributions(ctx context.Context, userID string, limit int) ([]*Contribution, error)
}
