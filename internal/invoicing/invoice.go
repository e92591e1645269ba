package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// NewInvoice creates a Draft invoice with no line items and zero totals.
func NewInvoice(customerID int64, issueDate, dueDate time.Time, paymentTerms, number string, now time.Time) (*Invoice, error) {
	if customerID <= 0 {
		return nil, &ValidationError{Field: "customerId", Reason: "required"}
	}
	if dueDate.Before(issueDate) {
		return nil, &ValidationError{Field: "dueDate", Reason: "must not precede issue date"}
	}

	inv := &Invoice{
		CustomerID:    customerID,
		Number:        number,
		IssueDate:     issueDate,
		DueDate:       dueDate,
		Status:        StatusDraft,
		PaymentTerms:  paymentTerms,
		Subtotal:      decimal.Zero,
		TotalDiscount: decimal.Zero,
		TotalTax:      decimal.Zero,
		TotalAmount:   decimal.Zero,
		AmountPaid:    decimal.Zero,
		Balance:       decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	inv.emit(EventInvoiceCreated, decimal.Zero, now)
	return inv, nil
}

// AddLineItem validates and appends a line, then recomputes totals. Only Draft
// invoices accept line changes.
func (inv *Invoice) AddLineItem(description string, quantity int64, unitPrice, discountPct, taxRate decimal.Decimal, now time.Time) (*LineItem, error) {
	if inv.Status != StatusDraft {
		return nil, &InvoiceImmutableError{Status: inv.Status}
	}
	amounts, err := CalculateLineAmounts(quantity, unitPrice, discountPct, taxRate)
	if err != nil {
		return nil, err
	}

	line := LineItem{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		DiscountPct: discountPct,
		TaxRate:     taxRate,
		Subtotal:    amounts.Subtotal,
		Discount:    amounts.Discount,
		Taxable:     amounts.Taxable,
		Tax:         amounts.Tax,
		Total:       amounts.Total,
	}
	inv.Lines = append(inv.Lines, line)
	inv.recomputeTotals(now)
	inv.emit(EventLineItemAdded, line.Total, now)
	return &inv.Lines[len(inv.Lines)-1], nil
}

// RemoveLineItem removes the line with the given ID and recomputes totals.
func (inv *Invoice) RemoveLineItem(lineItemID int64, now time.Time) error {
	if inv.Status != StatusDraft {
		return &InvoiceImmutableError{Status: inv.Status}
	}
	idx := -1
	for i, line := range inv.Lines {
		if line.ID == lineItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	removed := inv.Lines[idx]
	inv.Lines = append(inv.Lines[:idx], inv.Lines[idx+1:]...)
	inv.recomputeTotals(now)
	inv.emit(EventLineItemRemoved, removed.Total, now)
	return nil
}

// SetNotes updates free-form notes. Draft only.
func (inv *Invoice) SetNotes(notes string, now time.Time) error {
	if inv.Status != StatusDraft {
		return &InvoiceImmutableError{Status: inv.Status}
	}
	inv.Notes = notes
	inv.UpdatedAt = now
	return nil
}

// CanBeSent reports whether the invoice may transition to Sent.
func (inv *Invoice) CanBeSent() bool {
	return inv.Status == StatusDraft && len(inv.Lines) > 0
}

// MarkAsSent transitions Draft to Sent. Requires at least one line item. The
// transition is irreversible.
func (inv *Invoice) MarkAsSent(now time.Time) error {
	if !inv.CanBeSent() {
		return &InvalidStateError{Op: "send", Status: inv.Status}
	}
	inv.Status = StatusSent
	inv.UpdatedAt = now
	inv.emit(EventInvoiceSent, inv.TotalAmount, now)
	return nil
}

// ApplyPayment decreases the balance by amount and transitions to Paid when the
// balance reaches zero. Only Sent invoices accept payments; the payment applier
// is responsible for the overpayment check before calling this.
func (inv *Invoice) ApplyPayment(amount decimal.Decimal, now time.Time) error {
	if inv.Status != StatusSent {
		return &InvoiceNotSentError{Status: inv.Status}
	}
	inv.AmountPaid = shared.RoundMoney(inv.AmountPaid.Add(amount))
	inv.Balance = shared.RoundMoney(inv.TotalAmount.Sub(inv.AmountPaid))
	inv.UpdatedAt = now
	if inv.Balance.IsZero() {
		inv.Status = StatusPaid
	}
	return nil
}

// recomputeTotals sums line amounts and refreshes the balance. Called on every
// line change; payments cannot exist yet while Draft, but AmountPaid is kept in
// the balance formula so rehydrated aggregates stay consistent.
func (inv *Invoice) recomputeTotals(now time.Time) {
	subtotal, discount, tax, total := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, line := range inv.Lines {
		subtotal = subtotal.Add(line.Subtotal)
		discount = discount.Add(line.Discount)
		tax = tax.Add(line.Tax)
		total = total.Add(line.Total)
	}
	inv.Subtotal = shared.RoundMoney(subtotal)
	inv.TotalDiscount = shared.RoundMoney(discount)
	inv.TotalTax = shared.RoundMoney(tax)
	inv.TotalAmount = shared.RoundMoney(total)
	inv.Balance = shared.RoundMoney(inv.TotalAmount.Sub(inv.AmountPaid))
	inv.UpdatedAt = now
}

func (inv *Invoice) emit(eventType string, amount decimal.Decimal, now time.Time) {
	inv.events = append(inv.events, Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		InvoiceID:  inv.ID,
		Number:     inv.Number,
		CustomerID: inv.CustomerID,
		Amount:     amount,
		Balance:    inv.Balance,
		Status:     inv.Status,
		OccurredAt: now,
	})
}
