package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types recorded by the aggregate.
const (
	EventInvoiceCreated  = "invoice.created"
	EventInvoiceSent     = "invoice.sent"
	EventPaymentRecorded = "invoice.payment_recorded"
	EventLineItemAdded   = "invoice.line_added"
	EventLineItemRemoved = "invoice.line_removed"
)

// Event is a domain event produced by aggregate mutations. The aggregate only
// accumulates these as data; dispatch is the caller's concern.
type Event struct {
	ID         string
	Type       string
	InvoiceID  int64
	Number     string
	CustomerID int64
	Amount     decimal.Decimal
	Balance    decimal.Decimal
	Status     InvoiceStatus
	OccurredAt time.Time
}

// Events returns the pending events without draining them.
func (inv *Invoice) Events() []Event {
	return inv.events
}

// DrainEvents returns and clears the pending events. The repository calls this
// when writing the outbox so a reused aggregate does not re-emit.
func (inv *Invoice) DrainEvents() []Event {
	evts := inv.events
	inv.events = nil
	return evts
}
