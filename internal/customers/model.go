package customers

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID               int64      `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	Email            *string    `json:"email,omitempty" db:"email"`
	Phone            *string    `json:"phone,omitempty" db:"phone"`
	TaxID            *string    `json:"tax_id,omitempty" db:"tax_id"`
	PaymentTermsDays int        `json:"payment_terms_days" db:"payment_terms_days"`
	AddressLine1     *string    `json:"address_line1,omitempty" db:"address_line1"`
	AddressLine2     *string    `json:"address_line2,omitempty" db:"address_line2"`
	City             *string    `json:"city,omitempty" db:"city"`
	State            *string    `json:"state,omitempty" db:"state"`
	PostalCode       *string    `json:"postal_code,omitempty" db:"postal_code"`
	Country          string     `json:"country" db:"country"`
	Notes            *string    `json:"notes,omitempty" db:"notes"`
	CreatedBy        int64      `json:"created_by" db:"created_by"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Active reports whether the customer is not soft deleted.
func (c Customer) Active() bool {
	return c.DeletedAt == nil
}

// CustomerWithStats joins a customer with invoice aggregates computed in the
// listing query.
type CustomerWithStats struct {
	Customer
	InvoiceCount int64           `json:"invoice_count"`
	OpenBalance  decimal.Decimal `json:"open_balance"`
}
