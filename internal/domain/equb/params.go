package equb

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MinContributionAmount is the smallest installment accepted at creation.
var MinContributionAmount = decimal.NewFromInt(1)

// AmountPlaces is the number of decimal places money columns store.
const AmountPlaces = 2

// ValidationError describes a rejected creation input. Nothing is persisted when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// CreateParams is the caller-supplied description of a new Equb.
type CreateParams struct {
	Name               string
	ContributionAmount decimal.Decimal
	Frequency          Frequency
	StartDate          time.Time
	TotalCycles        int
	PayoutCycle        int
}

// Validate checks the parameters in field order and returns the first problem found.
func (p CreateParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Message: "Name is required"}
	}
	if p.ContributionAmount.LessThan(MinContributionAmount) {
		return &ValidationError{Field: "contributionAmount", Message: "Amount must be at least 1"}
	}
	if !p.ContributionAmount.Equal(p.ContributionAmount.Round(AmountPlaces)) {
		return &ValidationError{Field: "contributionAmount", Message: "Amount can have at most 2 decimal places"}
	}
	if !p.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Message: fmt.Sprintf("unsupported frequency %q", p.Frequency)}
	}
	if p.StartDate.IsZero() {
		return &ValidationError{Field: "startDate", Message: "Start date is required"}
	}
	if p.TotalCycles < 1 {
		return &ValidationError{Field: "totalCycles", Message: "Total cycles must be at least 1"}
	}
	if p.PayoutCycle < 1 || p.PayoutCycle > p.TotalCycles {
		return &ValidationError{Field: "payoutCycle", Message: fmt.Sprintf("Payout cycle must be between 1 and %d", p.TotalCycles)}
	}
	return nil
}
