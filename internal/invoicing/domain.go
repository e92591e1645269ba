package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	StatusDraft InvoiceStatus = "DRAFT"
	StatusSent  InvoiceStatus = "SENT"
	StatusPaid  InvoiceStatus = "PAID"
)

// PaymentMethod enumerates accepted payment methods.
type PaymentMethod string

const (
	MethodCreditCard   PaymentMethod = "CREDIT_CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodCheck        PaymentMethod = "CHECK"
	MethodCash         PaymentMethod = "CASH"
)

// IsValid reports whether m is one of the accepted methods.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCreditCard, MethodBankTransfer, MethodCheck, MethodCash:
		return true
	}
	return false
}

// LineItem is an immutable invoice line. Derived amounts are computed once at
// construction and never change afterwards.
type LineItem struct {
	ID          int64
	Description string
	Quantity    int64
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
	TaxRate     decimal.Decimal
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Taxable     decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// Invoice is the aggregate root owning line items and applied payments.
type Invoice struct {
	ID            int64
	CustomerID    int64
	Number        string
	IssueDate     time.Time
	DueDate       time.Time
	Status        InvoiceStatus
	PaymentTerms  string
	Notes         string
	Lines         []LineItem
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalTax      decimal.Decimal
	TotalAmount   decimal.Decimal
	AmountPaid    decimal.Decimal
	Balance       decimal.Decimal
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time

	events []Event
}

// Payment records money applied against one invoice. Created once, never
// mutated; deletion is not supported.
type Payment struct {
	ID             int64
	InvoiceID      int64
	PaymentDate    time.Time
	Amount         decimal.Decimal
	Method         PaymentMethod
	Reference      string
	Notes          string
	CreatedBy      int64
	IdempotencyKey string
	CreatedAt      time.Time
}

// InvoiceWithDetails bundles an invoice with its payment history for display.
type InvoiceWithDetails struct {
	Invoice
	CustomerName string
	Payments     []Payment
}

// ListInvoicesRequest filters invoice listings.
type ListInvoicesRequest struct {
	Status     InvoiceStatus
	CustomerID int64
	FromDate   time.Time
	ToDate     time.Time
	Limit      int
	Offset     int
}

// AgingBucket summarises outstanding balances by days past due.
type AgingBucket struct {
	Current   decimal.Decimal
	Bucket30  decimal.Decimal
	Bucket60  decimal.Decimal
	Bucket90  decimal.Decimal
	Bucket120 decimal.Decimal
}
