package invoicing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	invoices      map[int64]*Invoice
	payments      map[int64]*Payment
	outbox        []Event
	sequences     map[int]int64
	nextInvoiceID int64
	nextLineID    int64
	nextPaymentID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices:  make(map[int64]*Invoice),
		payments:  make(map[int64]*Payment),
		sequences: make(map[int]int64),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) CreateInvoice(ctx context.Context, inv *Invoice) error {
	r.nextInvoiceID++
	inv.ID = r.nextInvoiceID
	inv.Version = 1
	for i := range inv.Lines {
		r.nextLineID++
		inv.Lines[i].ID = r.nextLineID
	}
	r.outbox = append(r.outbox, inv.DrainEvents()...)
	stored := cloneInvoice(inv)
	r.invoices[inv.ID] = &stored
	return nil
}

func (r *memoryRepo) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	loaded := cloneInvoice(inv)
	return &loaded, nil
}

func (r *memoryRepo) GetInvoiceWithDetails(ctx context.Context, id int64) (*InvoiceWithDetails, error) {
	inv, err := r.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	details := &InvoiceWithDetails{Invoice: *inv}
	for _, p := range r.payments {
		if p.InvoiceID == id {
			details.Payments = append(details.Payments, *p)
		}
	}
	return details, nil
}

func (r *memoryRepo) SaveInvoice(ctx context.Context, inv *Invoice) error {
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != inv.Version {
		return ErrVersionConflict
	}
	inv.Version++
	for i := range inv.Lines {
		if inv.Lines[i].ID == 0 {
			r.nextLineID++
			inv.Lines[i].ID = r.nextLineID
		}
	}
	r.outbox = append(r.outbox, inv.DrainEvents()...)
	updated := cloneInvoice(inv)
	r.invoices[inv.ID] = &updated
	return nil
}

func (r *memoryRepo) CreatePayment(ctx context.Context, p *Payment) error {
	r.nextPaymentID++
	p.ID = r.nextPaymentID
	stored := *p
	r.payments[p.ID] = &stored
	return nil
}

func (r *memoryRepo) PaymentExistsByKey(ctx context.Context, invoiceID int64, key string) (bool, error) {
	for _, p := range r.payments {
		if p.InvoiceID == invoiceID && p.IdempotencyKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) NextInvoiceNumber(ctx context.Context, year int) (int64, error) {
	r.sequences[year]++
	return r.sequences[year], nil
}

func (r *memoryRepo) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if req.Status != "" && inv.Status != req.Status {
			continue
		}
		if req.CustomerID != 0 && inv.CustomerID != req.CustomerID {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	return out, nil
}

func (r *memoryRepo) ListOutstanding(ctx context.Context) ([]Invoice, error) {
	return r.ListInvoices(ctx, ListInvoicesRequest{Status: StatusSent})
}

func cloneInvoice(inv *Invoice) Invoice {
	clone := *inv
	clone.Lines = append([]LineItem(nil), inv.Lines...)
	clone.events = nil
	return clone
}

func fixedClock() Clock {
	return func() time.Time { return testNow }
}

func newDraftViaService(t *testing.T, svc *Service) *Invoice {
	t.Helper()
	ctx := context.Background()
	inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{
		CustomerID:   100,
		IssueDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:      time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		PaymentTerms: "NET30",
	})
	require.NoError(t, err)
	return inv
}

func TestServiceCreateInvoiceAllocatesNumbers(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedClock())

	first := newDraftViaService(t, svc)
	second := newDraftViaService(t, svc)
	require.Equal(t, "INV-2026-0001", first.Number)
	require.Equal(t, "INV-2026-0002", second.Number)
	require.Equal(t, StatusDraft, first.Status)

	require.Len(t, repo.outbox, 2)
	require.Equal(t, EventInvoiceCreated, repo.outbox[0].Type)
}

func TestServiceCreateInvoiceValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), fixedClock())

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		IssueDate: testNow,
		DueDate:   testNow,
	})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestServiceLineItemLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, fixedClock())
	inv := newDraftViaService(t, svc)

	inv, err := svc.AddLineItem(ctx, inv.ID, AddLineItemInput{
		Description: "Consulting",
		Quantity:    40,
		UnitPrice:   dec("100.00"),
		DiscountPct: dec("10"),
		TaxRate:     dec("8"),
	})
	require.NoError(t, err)
	require.True(t, inv.TotalAmount.Equal(dec("3888.00")))
	require.NotZero(t, inv.Lines[0].ID)

	inv, err = svc.AddLineItem(ctx, inv.ID, AddLineItemInput{
		Description: "Hosting",
		Quantity:    1,
		UnitPrice:   dec("50.00"),
	})
	require.NoError(t, err)
	require.True(t, inv.TotalAmount.Equal(dec("3938.00")))

	inv, err = svc.RemoveLineItem(ctx, inv.ID, inv.Lines[1].ID)
	require.NoError(t, err)
	require.Len(t, inv.Lines, 1)
	require.True(t, inv.TotalAmount.Equal(dec("3888.00")))

	inv, err = svc.SetNotes(ctx, inv.ID, "March retainer")
	require.NoError(t, err)
	require.Equal(t, "March retainer", inv.Notes)
}

func TestServiceIssueInvoice(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, fixedClock())
	inv := newDraftViaService(t, svc)

	_, err := svc.IssueInvoice(ctx, inv.ID)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)

	_, err = svc.AddLineItem(ctx, inv.ID, AddLineItemInput{
		Description: "Consulting", Quantity: 1, UnitPrice: dec("100.00"),
	})
	require.NoError(t, err)

	issued, err := svc.IssueInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, issued.Status)

	last := repo.outbox[len(repo.outbox)-1]
	require.Equal(t, EventInvoiceSent, last.Type)
}

func TestServiceRecordPaymentFlow(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, fixedClock())
	inv := newDraftViaService(t, svc)
	_, err := svc.AddLineItem(ctx, inv.ID, AddLineItemInput{
		Description: "Consulting", Quantity: 40, UnitPrice: dec("100.00"),
		DiscountPct: dec("10"), TaxRate: dec("8"),
	})
	require.NoError(t, err)
	_, err = svc.IssueInvoice(ctx, inv.ID)
	require.NoError(t, err)

	updated, payment, err := svc.RecordPayment(ctx, inv.ID, RecordPaymentInput{
		PaymentDate: testNow,
		Amount:      dec("1000.00"),
		Method:      MethodCreditCard,
		CreatedBy:   7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusSent, updated.Status)
	require.True(t, updated.Balance.Equal(dec("2888.00")))
	require.NotZero(t, payment.ID)

	updated, _, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentInput{
		PaymentDate: testNow,
		Amount:      dec("2888.00"),
		Method:      MethodBankTransfer,
		CreatedBy:   7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)
	require.True(t, updated.Balance.IsZero())

	details, err := svc.GetInvoiceWithDetails(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, details.Payments, 2)
}

func TestServiceRecordPaymentIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, fixedClock())
	inv := newDraftViaService(t, svc)
	_, err := svc.AddLineItem(ctx, inv.ID, AddLineItemInput{
		Description: "Consulting", Quantity: 1, UnitPrice: dec("100.00"),
	})
	require.NoError(t, err)
	_, err = svc.IssueInvoice(ctx, inv.ID)
	require.NoError(t, err)

	in := RecordPaymentInput{
		PaymentDate:    testNow,
		Amount:         dec("40.00"),
		Method:         MethodCash,
		IdempotencyKey: "req-abc-123",
	}
	_, _, err = svc.RecordPayment(ctx, inv.ID, in)
	require.NoError(t, err)

	_, _, err = svc.RecordPayment(ctx, inv.ID, in)
	require.ErrorIs(t, err, ErrDuplicatePayment)

	// The duplicate must not have been applied.
	current, err := svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, current.Balance.Equal(dec("60.00")), "balance %s", current.Balance)
}

func TestServiceRecordPaymentOverpayment(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, fixedClock())
	inv := newDraftViaService(t, svc)
	_, err := svc.AddLineItem(ctx, inv.ID, AddLineItemInput{
		Description: "Consulting", Quantity: 1, UnitPrice: dec("100.00"),
	})
	require.NoError(t, err)
	_, err = svc.IssueInvoice(ctx, inv.ID)
	require.NoError(t, err)

	_, _, err = svc.RecordPayment(ctx, inv.ID, RecordPaymentInput{
		PaymentDate: testNow,
		Amount:      dec("100.01"),
		Method:      MethodCheck,
	})
	var exceeds *PaymentExceedsBalanceError
	require.ErrorAs(t, err, &exceeds)
	require.True(t, exceeds.Balance.Equal(dec("100.00")))
}

func TestServiceCalculateAging(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, fixedClock())

	mkSent := func(dueDate time.Time, amount string) {
		inv, err := svc.CreateInvoice(ctx, CreateInvoiceInput{
			CustomerID: 100,
			IssueDate:  dueDate.AddDate(0, -1, 0),
			DueDate:    dueDate,
		})
		require.NoError(t, err)
		_, err = svc.AddLineItem(ctx, inv.ID, AddLineItemInput{
			Description: "Work", Quantity: 1, UnitPrice: dec(amount),
		})
		require.NoError(t, err)
		_, err = svc.IssueInvoice(ctx, inv.ID)
		require.NoError(t, err)
	}

	mkSent(testNow.AddDate(0, 0, 5), "100.00")
	mkSent(testNow.AddDate(0, 0, -20), "200.00")
	mkSent(testNow.AddDate(0, 0, -50), "300.00")
	mkSent(testNow.AddDate(0, 0, -200), "400.00")

	bucket, err := svc.CalculateAging(ctx, testNow)
	require.NoError(t, err)
	require.True(t, bucket.Current.Equal(dec("100.00")), "current %s", bucket.Current)
	require.True(t, bucket.Bucket30.Equal(dec("200.00")))
	require.True(t, bucket.Bucket60.Equal(dec("300.00")))
	require.True(t, bucket.Bucket120.Equal(dec("400.00")))
	require.True(t, bucket.Bucket90.Equal(decimal.Zero))
}
