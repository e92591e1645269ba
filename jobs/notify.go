package jobs

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ledgerline/ledgerline/internal/invoicing"
)

var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders a monetary amount with thousands separators for email
// bodies. Display only; arithmetic stays in decimal.
func formatAmount(d decimal.Decimal) string {
	return amountPrinter.Sprintf("%.2f", d.InexactFloat64())
}

// InvoiceSentEmail builds the notification sent when an invoice is issued.
func InvoiceSentEmail(to string, evt invoicing.OutboxEvent) SendEmailPayload {
	return SendEmailPayload{
		To:      to,
		Subject: fmt.Sprintf("Invoice %s issued", evt.Number),
		Body: fmt.Sprintf("Invoice %s has been issued for a total of %s. Payment is due per your agreed terms.",
			evt.Number, formatAmount(evt.Amount)),
	}
}

// PaymentReceivedEmail builds the receipt sent after a payment is recorded.
func PaymentReceivedEmail(to string, evt invoicing.OutboxEvent) SendEmailPayload {
	body := fmt.Sprintf("We received your payment of %s against invoice %s. Remaining balance: %s.",
		formatAmount(evt.Amount), evt.Number, formatAmount(evt.Balance))
	if evt.Status == invoicing.StatusPaid {
		body = fmt.Sprintf("We received your payment of %s against invoice %s. The invoice is now paid in full. Thank you.",
			formatAmount(evt.Amount), evt.Number)
	}
	return SendEmailPayload{
		To:      to,
		Subject: fmt.Sprintf("Payment received for invoice %s", evt.Number),
		Body:    body,
	}
}

// OverdueReminderEmail builds the reminder for a Sent invoice past its due date.
func OverdueReminderEmail(to string, inv invoicing.Invoice, asOf time.Time) SendEmailPayload {
	days := int(asOf.Sub(inv.DueDate).Hours() / 24)
	return SendEmailPayload{
		To:      to,
		Subject: fmt.Sprintf("Invoice %s is overdue", inv.Number),
		Body: fmt.Sprintf("Invoice %s was due on %s and is %d day(s) overdue. Outstanding balance: %s.",
			inv.Number, inv.DueDate.Format("2006-01-02"), days, formatAmount(inv.Balance)),
	}
}
