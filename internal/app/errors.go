package app

import (
	"errors"
	"fmt"

	"equb_tracker/internal/domain/equb"

	"github.com/shopspring/decimal"
)

// Error kinds returned across the service boundary. Use errors.Is to classify, or Kind for a label.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadySettled     = errors.New("already settled")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrEqubHasSettlements = errors.New("equb has settled contributions or a received payout")
	ErrInvalidLinkCode    = errors.New("invalid telegram verification code")
	ErrTelegramNotLinked  = errors.New("telegram chat is not linked to any user")
	ErrChatAlreadyLinked  = errors.New("telegram chat is already linked to another user")
	ErrInternal           = errors.New("internal error")
)

// serviceError pairs an error kind with the message shown to the user.
type serviceError struct {
	kind  error
	msg   string
	cause error
}

func (e *serviceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *serviceError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

func newServiceError(kind error, msg string) error {
	return &serviceError{kind: kind, msg: msg}
}

func internalError(msg string, cause error) error {
	return &serviceError{kind: ErrInternal, msg: msg, cause: cause}
}

var (
	errContributionNotFound = newServiceError(ErrNotFound, "Contribution not found")
	errPayoutNotFound       = newServiceError(ErrNotFound, "Payout not found")
	errAccountNotFound      = newServiceError(ErrNotFound, "Account not found")
	errNotificationNotFound = newServiceError(ErrNotFound, "Notification not found")
	errAlreadyPaid          = newServiceError(ErrAlreadySettled, "Already paid")
	errAlreadyReceived      = newServiceError(ErrAlreadySettled, "Already received")
	errEqubHasSettlements   = newServiceError(ErrEqubHasSettlements, "Cannot delete an Equb with recorded payments")
	errInvalidLinkCode      = newServiceError(ErrInvalidLinkCode, "Invalid code. Please check the 6-digit code on your Settings page and try again.")
	errChatAlreadyLinked    = newServiceError(ErrChatAlreadyLinked, "This Telegram chat is already linked to another account.")
)

// InsufficientFundsError rejects a contribution the chosen account cannot cover.
type InsufficientFundsError struct {
	Balance  decimal.Decimal
	Currency string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Insufficient balance! Your current balance is %s %s.", FormatAmount(e.Balance), e.Currency)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Kind maps an error returned by a service to its discriminant label.
func Kind(err error) string {
	var ve *equb.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve), errors.Is(err, ErrInvalidLinkCode):
		return "Validation"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTelegramNotLinked):
		return "NotFound"
	case errors.Is(err, ErrAlreadySettled):
		return "AlreadySettled"
	case errors.Is(err, ErrInsufficientFunds):
		return "InsufficientFunds"
	case errors.Is(err, ErrEqubHasSettlements), errors.Is(err, ErrChatAlreadyLinked):
		return "Conflict"
	default:
		return "Internal"
	}
}

// UserMessage returns the text a caller can show for err without exposing internals.
func UserMessage(err error, fallback string) string {
	var ve *equb.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var ife *InsufficientFundsError
	if errors.As(err, &ife) {
		return ife.Error()
	}
	var se *serviceError
	if errors.As(err, &se) && se.msg != "" {
		return se.msg
	}
	return fallback
}
