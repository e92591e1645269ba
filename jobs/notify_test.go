package jobs

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/invoicing"
)

func TestFormatAmountThousands(t *testing.T) {
	require.Equal(t, "1,234,567.89", formatAmount(decimal.RequireFromString("1234567.89")))
	require.Equal(t, "0.00", formatAmount(decimal.Zero))
}

func TestInvoiceSentEmail(t *testing.T) {
	mail := InvoiceSentEmail("billing@acme.test", invoicing.OutboxEvent{
		Number: "INV-2026-0001",
		Amount: decimal.RequireFromString("4040.00"),
	})
	require.Equal(t, "Invoice INV-2026-0001 issued", mail.Subject)
	require.Contains(t, mail.Body, "4,040.00")
}

func TestPaymentReceivedEmailPartialAndFull(t *testing.T) {
	partial := PaymentReceivedEmail("billing@acme.test", invoicing.OutboxEvent{
		Number:  "INV-2026-0001",
		Amount:  decimal.RequireFromString("1000.00"),
		Balance: decimal.RequireFromString("3040.00"),
		Status:  invoicing.StatusSent,
	})
	require.Contains(t, partial.Body, "Remaining balance: 3,040.00")

	full := PaymentReceivedEmail("billing@acme.test", invoicing.OutboxEvent{
		Number:  "INV-2026-0001",
		Amount:  decimal.RequireFromString("3040.00"),
		Balance: decimal.Zero,
		Status:  invoicing.StatusPaid,
	})
	require.Contains(t, full.Body, "paid in full")
	require.NotContains(t, full.Body, "Remaining balance")
}

func TestOverdueReminderEmail(t *testing.T) {
	mail := OverdueReminderEmail("billing@acme.test", invoicing.Invoice{
		Number:  "INV-2026-0001",
		DueDate: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
		Balance: decimal.RequireFromString("500.00"),
	}, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.Equal(t, "Invoice INV-2026-0001 is overdue", mail.Subject)
	require.Contains(t, mail.Body, "18 day(s) overdue")
}
