package httpapi

import (
	"time"

	"equb_tracker/internal/domain/equb"
	"equb_tracker/internal/domain/ledger"
	"equb_tracker/internal/domain/notification"

	"github.com/shopspring/decimal"
)

type createEqubRequest struct {
	Name               string          `json:"name"`
	ContributionAmount decimal.Decimal `json:"contributionAmount"`
	Frequency          string          `json:"frequency"`
	StartDate          string          `json:"startDate"` // YYYY-MM-DD or RFC 3339
	TotalCycles        int             `json:"totalCycles"`
	PayoutCycle        int             `json:"payoutCycle"`
}

func (r createEqubRequest) params(loc *time.Location) (equb.CreateParams, error) {
	p := equb.CreateParams{
		Name:               r.Name,
		ContributionAmount: r.ContributionAmount,
		Frequency:          equb.Frequency(r.Frequency),
		TotalCycles:        r.TotalCycles,
		PayoutCycle:        r.PayoutCycle,
	}
	if r.StartDate != "" {
		start, err := parseDate(r.StartDate, loc)
		if err != nil {
			return p, &equb.ValidationError{Field: "startDate", Message: "Start date must be YYYY-MM-DD"}
		}
		p.StartDate = start
	}
	return p, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

type settleRequest struct {
	AccountID string `json:"accountId"`
}

type actionRequest struct {
	Choice string `json:"choice"`
}

type contributionDTO struct {
	ID            string          `json:"id"`
	CycleNumber   int             `json:"cycleNumber"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"dueDate"`
	Status        string          `json:"status"`
	TransactionID *string         `json:"transactionId"`
}

type payoutDTO struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"dueDate"`
	Status        string          `json:"status"`
	TransactionID *string         `json:"transactionId"`
}

type equbDTO struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	ContributionAmount decimal.Decimal   `json:"contributionAmount"`
	Frequency          string            `json:"frequency"`
	StartDate          time.Time         `json:"startDate"`
	TotalCycles        int               `json:"totalCycles"`
	PayoutCycle        int               `json:"payoutCycle"`
	PaidCycles         int               `json:"paidCycles"`
	TotalContributed   decimal.Decimal   `json:"totalContributed"`
	Completed          bool              `json:"completed"`
	CreatedAt          time.Time         `json:"createdAt"`
	Contributions      []contributionDTO `json:"contributions"`
	Payout             *payoutDTO        `json:"payout"`
}

func toEqubDTO(e *equb.Equb) equbDTO {
	dto := equbDTO{
		ID:                 e.ID,
		Name:               e.Name,
		ContributionAmount: e.ContributionAmount,
		Frequency:          string(e.Frequency),
		StartDate:          e.StartDate,
		TotalCycles:        e.TotalCycles,
		PayoutCycle:        e.PayoutCycle,
		PaidCycles:         e.PaidCycles(),
		TotalContributed:   e.TotalContributed(),
		Completed:          e.Completed(),
		CreatedAt:          e.CreatedAt,
		Contributions:      make([]contributionDTO, 0, len(e.Contributions)),
	}
	for _, c := range e.Contributions {
		dto.Contributions = append(dto.Contributions, contributionDTO{
			ID:            c.ID,
			CycleNumber:   c.CycleNumber,
			Amount:        c.Amount,
			DueDate:       c.DueDate,
			Status:        string(c.Status),
			TransactionID: nullableString(c.TransactionID.String, c.TransactionID.Valid),
		})
	}
	if p := e.Payout; p != nil {
		dto.Payout = &payoutDTO{
			ID:            p.ID,
			Amount:        p.Amount,
			DueDate:       p.DueDate,
			Status:        string(p.Status),
			TransactionID: nullableString(p.TransactionID.String, p.TransactionID.Valid),
		}
	}
	return dto
}

type accountDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toAccountDTOs(accounts []*ledger.Account) []accountDTO {
	out := make([]accountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountDTO{ID: a.ID, Name: a.Name})
	}
	return out
}

type notificationDTO struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Type       string    `json:"type"`
	ActionID   *string   `json:"actionId"`
	ActionType string    `json:"actionType,omitempty"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toNotificationDTOs(notifs []*notification.Notification) []notificationDTO {
	out := make([]notificationDTO, 0, len(notifs))
	for _, n := range notifs {
		out = append(out, notificationDTO{
			ID:         n.ID,
			Title:      n.Title,
			Message:    n.Message,
			Type:       string(n.Type),
			ActionID:   nullableString(n.ActionID.String, n.ActionID.Valid),
			ActionType: string(n.ActionType),
			Read:       n.Read,
			CreatedAt:  n.CreatedAt,
		})
	}
	return out
}

func nullableString(s string, valid bool) *string {
	if !valid {
		return nil
	}
	return &s
}
