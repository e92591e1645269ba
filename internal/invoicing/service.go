package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RepositoryPort defines data access methods for invoicing. Implementations
// must provide optimistic concurrency (version check on save) and idempotency
// key uniqueness; the service assumes every call runs inside the transaction
// WithTx opens.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repo RepositoryPort) error) error
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	GetInvoiceWithDetails(ctx context.Context, id int64) (*InvoiceWithDetails, error)
	SaveInvoice(ctx context.Context, inv *Invoice) error
	CreatePayment(ctx context.Context, p *Payment) error
	PaymentExistsByKey(ctx context.Context, invoiceID int64, key string) (bool, error)
	NextInvoiceNumber(ctx context.Context, year int) (int64, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
	ListOutstanding(ctx context.Context) ([]Invoice, error)
}

// Clock supplies the current time. Injected so payment-date validation and
// numbering rollover are testable.
type Clock func() time.Time

// Service handles invoicing business logic.
type Service struct {
	repo     RepositoryPort
	clock    Clock
	validate *validator.Validate
}

// NewService builds a Service instance. A nil clock defaults to time.Now.
func NewService(repo RepositoryPort, clock Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{repo: repo, clock: clock, validate: validator.New()}
}

// CreateInvoiceInput carries fields for creating a draft invoice.
type CreateInvoiceInput struct {
	CustomerID   int64     `validate:"required,gt=0"`
	IssueDate    time.Time `validate:"required"`
	DueDate      time.Time `validate:"required"`
	PaymentTerms string    `validate:"max=120"`
	Notes        string
}

// AddLineItemInput carries fields for a new invoice line.
type AddLineItemInput struct {
	Description string          `validate:"required,max=500"`
	Quantity    int64           `validate:"required"`
	UnitPrice   decimal.Decimal `validate:"required"`
	DiscountPct decimal.Decimal
	TaxRate     decimal.Decimal
}

// CreateInvoice allocates the next invoice number and persists a new draft.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, &ValidationError{Field: "input", Reason: err.Error()}
	}

	now := s.clock()
	var created *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		seq, err := repo.NextInvoiceNumber(ctx, now.Year())
		if err != nil {
			return fmt.Errorf("allocate invoice number: %w", err)
		}
		inv, err := NewInvoice(in.CustomerID, in.IssueDate, in.DueDate, in.PaymentTerms, FormatInvoiceNumber(now.Year(), seq), now)
		if err != nil {
			return err
		}
		if in.Notes != "" {
			if err := inv.SetNotes(in.Notes, now); err != nil {
				return err
			}
		}
		if err := repo.CreateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AddLineItem appends a line to a draft invoice and recomputes totals.
func (s *Service) AddLineItem(ctx context.Context, invoiceID int64, in AddLineItemInput) (*Invoice, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, &ValidationError{Field: "input", Reason: err.Error()}
	}
	return s.mutate(ctx, invoiceID, func(inv *Invoice, now time.Time) error {
		_, err := inv.AddLineItem(in.Description, in.Quantity, in.UnitPrice, in.DiscountPct, in.TaxRate, now)
		return err
	})
}

// RemoveLineItem deletes a line from a draft invoice and recomputes totals.
func (s *Service) RemoveLineItem(ctx context.Context, invoiceID, lineItemID int64) (*Invoice, error) {
	return s.mutate(ctx, invoiceID, func(inv *Invoice, now time.Time) error {
		return inv.RemoveLineItem(lineItemID, now)
	})
}

// SetNotes updates a draft invoice's notes.
func (s *Service) SetNotes(ctx context.Context, invoiceID int64, notes string) (*Invoice, error) {
	return s.mutate(ctx, invoiceID, func(inv *Invoice, now time.Time) error {
		return inv.SetNotes(notes, now)
	})
}

// IssueInvoice transitions a draft with at least one line to Sent.
func (s *Service) IssueInvoice(ctx context.Context, invoiceID int64) (*Invoice, error) {
	return s.mutate(ctx, invoiceID, func(inv *Invoice, now time.Time) error {
		return inv.MarkAsSent(now)
	})
}

// RecordPayment validates and applies a payment against the invoice balance,
// marking the invoice Paid when the balance reaches zero. Duplicate submissions
// carrying a known idempotency key are rejected before any state changes.
func (s *Service) RecordPayment(ctx context.Context, invoiceID int64, in RecordPaymentInput) (*Invoice, *Payment, error) {
	now := s.clock()
	var (
		updated *Invoice
		payment *Payment
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		if in.IdempotencyKey != "" {
			exists, err := repo.PaymentExistsByKey(ctx, invoiceID, in.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("check idempotency key: %w", err)
			}
			if exists {
				return ErrDuplicatePayment
			}
		}
		inv, err := repo.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		p, err := RecordPayment(inv, in, now)
		if err != nil {
			return err
		}
		if err := repo.SaveInvoice(ctx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		if err := repo.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		updated = inv
		payment = p
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, payment, nil
}

// GetInvoice returns the rehydrated aggregate.
func (s *Service) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// GetInvoiceWithDetails returns the invoice with payment history.
func (s *Service) GetInvoiceWithDetails(ctx context.Context, id int64) (*InvoiceWithDetails, error) {
	return s.repo.GetInvoiceWithDetails(ctx, id)
}

// ListInvoices returns invoices matching the filter.
func (s *Service) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, req)
}

// CalculateAging groups outstanding Sent balances by days past due.
func (s *Service) CalculateAging(ctx context.Context, asOf time.Time) (AgingBucket, error) {
	invoices, err := s.repo.ListOutstanding(ctx)
	if err != nil {
		return AgingBucket{}, err
	}
	if asOf.IsZero() {
		asOf = s.clock()
	}
	bucket := AgingBucket{
		Current:   decimal.Zero,
		Bucket30:  decimal.Zero,
		Bucket60:  decimal.Zero,
		Bucket90:  decimal.Zero,
		Bucket120: decimal.Zero,
	}
	for _, inv := range invoices {
		if inv.Status != StatusSent {
			continue
		}
		days := int(asOf.Sub(inv.DueDate).Hours() / 24)
		switch {
		case days <= 0:
			bucket.Current = bucket.Current.Add(inv.Balance)
		case days <= 30:
			bucket.Bucket30 = bucket.Bucket30.Add(inv.Balance)
		case days <= 60:
			bucket.Bucket60 = bucket.Bucket60.Add(inv.Balance)
		case days <= 90:
			bucket.Bucket90 = bucket.Bucket90.Add(inv.Balance)
		default:
			bucket.Bucket120 = bucket.Bucket120.Add(inv.Balance)
		}
	}
	return bucket, nil
}

// mutate loads the invoice, applies fn and saves with the version check, all
// in one transaction.
func (s *Service) mutate(ctx context.Context, invoiceID int64, fn func(inv *Invoice, now time.Time) error) (*Invoice, error) {
	now := s.clock()
	var updated *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		inv, err := repo.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := fn(inv, now); err != nil {
			return err
		}
		if err := repo.SaveInvoice(ctx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
