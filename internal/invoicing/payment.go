package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordPaymentInput carries the caller-supplied payment fields.
type RecordPaymentInput struct {
	PaymentDate    time.Time
	Amount         decimal.Decimal
	Method         PaymentMethod
	Reference      string
	Notes          string
	CreatedBy      int64
	IdempotencyKey string
}

// RecordPayment validates input against the invoice's current state, applies
// the amount and returns the created payment. Duplicate suppression by
// idempotency key is a precondition the persistence layer enforces before this
// runs. The mutation is in-memory only; persisting the result is the caller's
// responsibility.
func RecordPayment(inv *Invoice, in RecordPaymentInput, now time.Time) (*Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if !in.Method.IsValid() {
		return nil, &ValidationError{Field: "method", Reason: "unknown payment method"}
	}
	if dateOnly(in.PaymentDate).After(dateOnly(now)) {
		return nil, &ValidationError{Field: "paymentDate", Reason: "must not be in the future"}
	}
	if inv.Status != StatusSent {
		return nil, &InvoiceNotSentError{Status: inv.Status}
	}
	if in.Amount.GreaterThan(inv.Balance) {
		return nil, &PaymentExceedsBalanceError{Requested: in.Amount, Balance: inv.Balance}
	}

	if err := inv.ApplyPayment(in.Amount, now); err != nil {
		return nil, err
	}
	inv.emit(EventPaymentRecorded, in.Amount, now)

	return &Payment{
		InvoiceID:      inv.ID,
		PaymentDate:    in.PaymentDate,
		Amount:         in.Amount,
		Method:         in.Method,
		Reference:      in.Reference,
		Notes:          in.Notes,
		CreatedBy:      in.CreatedBy,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
	}, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
