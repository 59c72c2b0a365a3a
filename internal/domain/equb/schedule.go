package equb

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScheduledContribution is one generated installment before persistence.
type ScheduledContribution struct {
	CycleNumber int
	Amount      decimal.Decimal
	DueDate     time.Time
}

// ScheduledPayout is the generated payout before persistence.
type ScheduledPayout struct {
	Amount  decimal.Decimal
	DueDate time.Time
}

// Schedule is the full plan derived from an Equb's parameters.
type Schedule struct {
	Contributions []ScheduledContribution
	Payout        ScheduledPayout
}

// GenerateSchedule builds the contribution due dates and the payout for an Equb.
// Cycle i falls due at startDate advanced by i-1 frequency units; the payout falls due on
// payoutCycle and pays out contributionAmount for every cycle.
func GenerateSchedule(startDate time.Time, frequency Frequency, totalCycles, payoutCycle int, contributionAmount decimal.Decimal) (Schedule, error) {
	if !frequency.Valid() {
		return Schedule{}, &ValidationError{Field: "frequency", Message: "unsupported frequency"}
	}
	if totalCycles < 1 {
		return Schedule{}, &ValidationError{Field: "totalCycles", Message: "Total cycles must be at least 1"}
	}
	if payoutCycle < 1 || payoutCycle > totalCycles {
		return Schedule{}, &ValidationError{Field: "payoutCycle", Message: "Payout cycle out of range"}
	}

	contributions := make([]ScheduledContribution, 0, totalCycles)
	for i := 1; i <= totalCycles; i++ {
		contributions = append(contributions, ScheduledContribution{
			CycleNumber: i,
			Amount:      contributionAmount,
			DueDate:     AddFrequency(startDate, frequency, i-1),
		})
	}

	return Schedule{
		Contributions: contributions,
		Payout: ScheduledPayout{
			Amount:  contributionAmount.Mul(decimal.NewFromInt(int64(totalCycles))),
			DueDate: AddFrequency(startDate, frequency, payoutCycle-1),
		},
	}, nil
}

// AddFrequency advances t by n units of the frequency, always measured from t itself.
// Monthly steps clamp to the last day of the target month (Jan 31 + 1 month = Feb 28 or 29).
func AddFrequency(t time.Time, frequency Frequency, n int) time.Time {
	switch frequency {
	case FrequencyDaily:
		return t.AddDate(0, 0, n)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7*n)
	case FrequencyMonthly:
		return addMonthsClamped(t, n)
	}
	return t
}

func addMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	// Day 1 never overflows, so this only moves the month.
	firstOfTarget := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(firstOfTarget.Year(), firstOfTarget.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
