package invoicing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func draftInvoice(t *testing.T) *Invoice {
	t.Helper()
	inv, err := NewInvoice(100,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		"NET30", "INV-2026-0001", testNow)
	require.NoError(t, err)
	return inv
}

func sentInvoice(t *testing.T) *Invoice {
	t.Helper()
	inv := draftInvoice(t)
	_, err := inv.AddLineItem("Consulting", 40, dec("100.00"), dec("10"), dec("8"), testNow)
	require.NoError(t, err)
	require.NoError(t, inv.MarkAsSent(testNow))
	return inv
}

func TestNewInvoice(t *testing.T) {
	inv := draftInvoice(t)
	require.Equal(t, StatusDraft, inv.Status)
	require.Empty(t, inv.Lines)
	require.True(t, inv.TotalAmount.IsZero())
	require.True(t, inv.Balance.IsZero())

	events := inv.Events()
	require.Len(t, events, 1)
	require.Equal(t, EventInvoiceCreated, events[0].Type)
}

func TestNewInvoiceValidation(t *testing.T) {
	issue := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := NewInvoice(0, issue, issue, "NET30", "INV-2026-0001", testNow)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "customerId", vErr.Field)

	_, err = NewInvoice(100, issue, issue.AddDate(0, 0, -1), "NET30", "INV-2026-0001", testNow)
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "dueDate", vErr.Field)

	// Due date equal to issue date is allowed.
	_, err = NewInvoice(100, issue, issue, "DUE_ON_RECEIPT", "INV-2026-0001", testNow)
	require.NoError(t, err)
}

func TestAddLineItemRecomputesTotals(t *testing.T) {
	inv := draftInvoice(t)

	_, err := inv.AddLineItem("Consulting", 40, dec("100.00"), dec("10"), dec("8"), testNow)
	require.NoError(t, err)
	require.True(t, inv.Subtotal.Equal(dec("4000.00")), "subtotal %s", inv.Subtotal)
	require.True(t, inv.TotalDiscount.Equal(dec("400.00")))
	require.True(t, inv.TotalTax.Equal(dec("288.00")))
	require.True(t, inv.TotalAmount.Equal(dec("3888.00")))
	require.True(t, inv.Balance.Equal(dec("3888.00")))

	_, err = inv.AddLineItem("Hosting", 1, dec("50.00"), decimal.Zero, decimal.Zero, testNow)
	require.NoError(t, err)
	require.True(t, inv.TotalAmount.Equal(dec("3938.00")), "total %s", inv.TotalAmount)
	require.Len(t, inv.Lines, 2)
}

func TestRemoveLineItemRecomputesTotals(t *testing.T) {
	inv := draftInvoice(t)
	line, err := inv.AddLineItem("Consulting", 40, dec("100.00"), dec("10"), dec("8"), testNow)
	require.NoError(t, err)
	line.ID = 7 // as assigned by persistence
	_, err = inv.AddLineItem("Hosting", 1, dec("50.00"), decimal.Zero, decimal.Zero, testNow)
	require.NoError(t, err)

	require.NoError(t, inv.RemoveLineItem(7, testNow))
	require.Len(t, inv.Lines, 1)
	require.True(t, inv.TotalAmount.Equal(dec("50.00")), "total %s", inv.TotalAmount)

	require.ErrorIs(t, inv.RemoveLineItem(999, testNow), ErrNotFound)
}

func TestLineItemsImmutableAfterSend(t *testing.T) {
	inv := sentInvoice(t)

	var immErr *InvoiceImmutableError
	_, err := inv.AddLineItem("Extra", 1, dec("10.00"), decimal.Zero, decimal.Zero, testNow)
	require.ErrorAs(t, err, &immErr)
	require.Equal(t, StatusSent, immErr.Status)

	err = inv.RemoveLineItem(inv.Lines[0].ID, testNow)
	require.ErrorAs(t, err, &immErr)

	err = inv.SetNotes("too late", testNow)
	require.ErrorAs(t, err, &immErr)
}

func TestMarkAsSentRequiresLines(t *testing.T) {
	inv := draftInvoice(t)
	require.False(t, inv.CanBeSent())

	var stateErr *InvalidStateError
	err := inv.MarkAsSent(testNow)
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, StatusDraft, stateErr.Status)

	_, err = inv.AddLineItem("Consulting", 1, dec("100.00"), decimal.Zero, decimal.Zero, testNow)
	require.NoError(t, err)
	require.True(t, inv.CanBeSent())
	require.NoError(t, inv.MarkAsSent(testNow))
	require.Equal(t, StatusSent, inv.Status)

	// No transition back: a second send fails.
	err = inv.MarkAsSent(testNow)
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, StatusSent, stateErr.Status)
}

func TestApplyPaymentTransitionsToPaid(t *testing.T) {
	inv := sentInvoice(t)

	require.NoError(t, inv.ApplyPayment(dec("1000.00"), testNow))
	require.Equal(t, StatusSent, inv.Status)
	require.True(t, inv.Balance.Equal(dec("2888.00")), "balance %s", inv.Balance)

	require.NoError(t, inv.ApplyPayment(dec("2888.00"), testNow))
	require.Equal(t, StatusPaid, inv.Status)
	require.True(t, inv.Balance.IsZero())
	require.True(t, inv.AmountPaid.Equal(inv.TotalAmount))
}

func TestApplyPaymentRejectsNonSent(t *testing.T) {
	var notSent *InvoiceNotSentError

	draft := draftInvoice(t)
	err := draft.ApplyPayment(dec("10.00"), testNow)
	require.ErrorAs(t, err, &notSent)
	require.Equal(t, StatusDraft, notSent.Status)

	paid := sentInvoice(t)
	require.NoError(t, paid.ApplyPayment(paid.Balance, testNow))
	err = paid.ApplyPayment(dec("1.00"), testNow)
	require.ErrorAs(t, err, &notSent)
	require.Equal(t, StatusPaid, notSent.Status)
}

func TestDrainEvents(t *testing.T) {
	inv := sentInvoice(t)
	events := inv.DrainEvents()
	require.Len(t, events, 3)
	require.Equal(t, EventInvoiceCreated, events[0].Type)
	require.Equal(t, EventLineItemAdded, events[1].Type)
	require.Equal(t, EventInvoiceSent, events[2].Type)
	require.Empty(t, inv.Events())

	for _, evt := range events {
		require.NotEmpty(t, evt.ID)
		require.Equal(t, int64(100), evt.CustomerID)
		require.Equal(t, testNow, evt.OccurredAt)
	}
}
