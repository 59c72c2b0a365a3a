// internal/domain/equb/equb.go
package equb

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the interval between two consecutive contribution due dates.
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// ContributionStatus is the settlement state of a single installment.
type ContributionStatus string

const (
	ContributionPending ContributionStatus = "PENDING"
	ContributionPaid    ContributionStatus = "PAID"
)

// PayoutStatus is the settlement state of the lump-sum payout.
type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "PENDING"
	PayoutReceived PayoutStatus = "RECEIVED"
)

// Equb is a personal rotating-savings plan owned by a single user.
// Corresponds to the 'equbs' table.
type Equb struct {
	ID                 string
	UserID             string
	Name               string
	ContributionAmount decimal.Decimal
	Frequency          Frequency
	StartDate          time.Time
	TotalCycles        int
	PayoutCycle        int // 1-based cycle on which the payout falls due
	CreatedAt          time.Time

	Contributions []*Contribution // ordered by cycle number
	Payout        *Payout
}

// Contribution is one scheduled installment of an Equb.
// Corresponds to the 'equb_contributions' table.
type Contribution struct {
	ID            string
	EqubID        string
	CycleNumber   int
	Amount        decimal.Decimal
	DueDate       time.Time
	Status        ContributionStatus
	TransactionID sql.NullString // ledger transaction posted when paid
	CreatedAt     time.Time

	// Populated from the parent Equb when loaded for settlement or reminders.
	EqubName string
	UserID   string
}

func (c *Contribution) Paid() bool {
	return c.Status == ContributionPaid
}

// Payout is the single lump-sum disbursement of an Equb.
// Corresponds to the 'equb_payouts' table.
type Payout struct {
	ID            string
	EqubID        string
	Amount        decimal.Decimal
	DueDate       time.Time
	Status        PayoutStatus
	TransactionID sql.NullString
	CreatedAt     time.Time

	EqubName string
	UserID   string
}

func (p *Payout) Received() bool {
	return p.Status == PayoutReceived
}

// PaidCycles counts the contributions already settled.
func (e *Equb) PaidCycles() int {
	n := 0
	for _, c := range e.Contributions {
		if c.Paid() {
			n++
		}
	}
	return n
}

// TotalContributed is the sum of all paid contribution amounts.
func (e *Equb) TotalContributed() decimal.Decimal {
	total := decimal.Zero
	for _, c := range e.Contributions {
		if c.Paid() {
			total = total.Add(c.Amount)
		}
	}
	return total
}

// Completed reports whether the payout has been received.
func (e *Equb) Completed() bool {
	return e.Payout != nil && e.Payout.Received()
}

// HasSettlements reports whether any contribution or the payout has produced a ledger transaction.
func (e *Equb) HasSettlements() bool {
	return e.PaidCycles() > 0 || e.Completed()
}
