package invoicing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors surfaced by the repository layer.
var (
	// ErrNotFound indicates the invoice or payment does not exist.
	ErrNotFound = errors.New("invoicing: not found")
	// ErrVersionConflict indicates a concurrent writer updated the invoice first.
	ErrVersionConflict = errors.New("invoicing: version conflict")
	// ErrDuplicatePayment indicates the idempotency key was already processed.
	ErrDuplicatePayment = errors.New("invoicing: duplicate payment")
)

// ValidationError reports malformed input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invoicing: invalid %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports an operation not permitted in the invoice's
// current status.
type InvalidStateError struct {
	Op     string
	Status InvoiceStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invoicing: cannot %s in status %s", e.Op, e.Status)
}

// InvoiceImmutableError reports a line-item or notes mutation attempted after
// the invoice left Draft.
type InvoiceImmutableError struct {
	Status InvoiceStatus
}

func (e *InvoiceImmutableError) Error() string {
	return fmt.Sprintf("invoicing: invoice is immutable in status %s", e.Status)
}

// InvoiceNotSentError reports a payment attempted on an invoice that is not in
// Sent status. Carries the current status for caller messaging.
type InvoiceNotSentError struct {
	Status InvoiceStatus
}

func (e *InvoiceNotSentError) Error() string {
	return fmt.Sprintf("invoicing: payment requires SENT invoice, current status %s", e.Status)
}

// PaymentExceedsBalanceError reports an overpayment attempt. Carries the
// requested amount and the current balance.
type PaymentExceedsBalanceError struct {
	Requested decimal.Decimal
	Balance   decimal.Decimal
}

func (e *PaymentExceedsBalanceError) Error() string {
	return fmt.Sprintf("invoicing: payment %s exceeds balance %s",
		e.Requested.StringFixed(2), e.Balance.StringFixed(2))
}
