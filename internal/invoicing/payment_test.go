package invoicing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func paymentInput(amount string) RecordPaymentInput {
	return RecordPaymentInput{
		PaymentDate: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		Amount:      dec(amount),
		Method:      MethodBankTransfer,
		Reference:   "wire-4471",
		CreatedBy:   1,
	}
}

func TestRecordPaymentPartialThenFull(t *testing.T) {
	inv := sentInvoice(t)

	p, err := RecordPayment(inv, paymentInput("1000.00"), testNow)
	require.NoError(t, err)
	require.True(t, p.Amount.Equal(dec("1000.00")))
	require.Equal(t, StatusSent, inv.Status)
	require.True(t, inv.Balance.Equal(dec("2888.00")), "balance %s", inv.Balance)

	p, err = RecordPayment(inv, paymentInput("2888.00"), testNow)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)
	require.True(t, inv.Balance.IsZero())
	require.Equal(t, MethodBankTransfer, p.Method)
}

func TestRecordPaymentValidation(t *testing.T) {
	inv := sentInvoice(t)
	var vErr *ValidationError

	in := paymentInput("0")
	_, err := RecordPayment(inv, in, testNow)
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "amount", vErr.Field)

	in = paymentInput("-5.00")
	_, err = RecordPayment(inv, in, testNow)
	require.ErrorAs(t, err, &vErr)

	in = paymentInput("10.00")
	in.Method = PaymentMethod("IOU")
	_, err = RecordPayment(inv, in, testNow)
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "method", vErr.Field)

	in = paymentInput("10.00")
	in.PaymentDate = testNow.AddDate(0, 0, 1)
	_, err = RecordPayment(inv, in, testNow)
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "paymentDate", vErr.Field)

	// Same-day payment is fine even when the timestamp is later in the day.
	in = paymentInput("10.00")
	in.PaymentDate = time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	_, err = RecordPayment(inv, in, testNow)
	require.NoError(t, err)
}

func TestRecordPaymentRejectsDraftAndPaid(t *testing.T) {
	var notSent *InvoiceNotSentError

	draft := draftInvoice(t)
	_, err := RecordPayment(draft, paymentInput("10.00"), testNow)
	require.ErrorAs(t, err, &notSent)
	require.Equal(t, StatusDraft, notSent.Status)

	inv := sentInvoice(t)
	_, err = RecordPayment(inv, paymentInput("3888.00"), testNow)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)

	_, err = RecordPayment(inv, paymentInput("1.00"), testNow)
	require.ErrorAs(t, err, &notSent)
	require.Equal(t, StatusPaid, notSent.Status)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	inv := sentInvoice(t)

	var exceeds *PaymentExceedsBalanceError
	_, err := RecordPayment(inv, paymentInput("3888.01"), testNow)
	require.ErrorAs(t, err, &exceeds)
	require.True(t, exceeds.Requested.Equal(dec("3888.01")))
	require.True(t, exceeds.Balance.Equal(dec("3888.00")))

	// The failed attempt must not have touched the aggregate.
	require.Equal(t, StatusSent, inv.Status)
	require.True(t, inv.Balance.Equal(dec("3888.00")))
}

func TestRecordPaymentEmitsEvent(t *testing.T) {
	inv := sentInvoice(t)
	inv.DrainEvents()

	_, err := RecordPayment(inv, paymentInput("500.00"), testNow)
	require.NoError(t, err)

	events := inv.Events()
	require.Len(t, events, 1)
	require.Equal(t, EventPaymentRecorded, events[0].Type)
	require.True(t, events[0].Amount.Equal(dec("500.00")))
	require.True(t, events[0].Balance.Equal(dec("3388.00")))
}
