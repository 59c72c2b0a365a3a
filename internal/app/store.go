package app

import (
	"context"

	"equb_tracker/internal/domain/equb"
	"equb_tracker/internal/domain/ledger"
	"equb_tracker/internal/domain/notification"
	"equb_tracker/internal/domain/user"
)

// Repositories bundles the repository ports, either bound to the pool or to one transaction.
type Repositories struct {
	Equbs         equb.Repository
	Ledger        ledger.Repository
	Notifications notification.Repository
	Users         user.Repository
}

// Store gives services plain repositories and a way to run work as one atomic unit.
type Store interface {
	Repos() Repositories
	// WithinTx runs fn against repositories bound to a single transaction.
	// The transaction commits only if fn returns nil.
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}
