package invoicing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository provides PostgreSQL backed persistence for invoicing.
type Repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// WithTx wraps fn in a repeatable-read transaction. The repository passed to
// fn routes every statement through that transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{db: tx, pool: r.pool})
	})
}

// CreateInvoice inserts a new invoice header plus any lines and drains the
// aggregate's pending events into the outbox.
func (r *Repository) CreateInvoice(ctx context.Context, inv *Invoice) error {
	query := `
		INSERT INTO invoices (
			customer_id, number, issue_date, due_date, status, payment_terms, notes,
			subtotal, total_discount, total_tax, total_amount, amount_paid, balance,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, $14, $14)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		inv.CustomerID, inv.Number, inv.IssueDate, inv.DueDate, string(inv.Status),
		inv.PaymentTerms, inv.Notes,
		inv.Subtotal, inv.TotalDiscount, inv.TotalTax, inv.TotalAmount,
		inv.AmountPaid, inv.Balance, inv.CreatedAt,
	).Scan(&inv.ID)
	if err != nil {
		return err
	}
	inv.Version = 1

	for i := range inv.Lines {
		if err := r.insertLine(ctx, inv.ID, &inv.Lines[i], i); err != nil {
			return err
		}
	}
	return r.appendEvents(ctx, inv)
}

// GetInvoice rehydrates the aggregate: header, ordered lines and the paid
// amount derived from recorded payments.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	query := `
		SELECT id, customer_id, number, issue_date, due_date, status, payment_terms,
			notes, subtotal, total_discount, total_tax, total_amount, amount_paid,
			balance, version, created_at, updated_at
		FROM invoices
		WHERE id = $1`

	var inv Invoice
	var status string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.CustomerID, &inv.Number, &inv.IssueDate, &inv.DueDate, &status,
		&inv.PaymentTerms, &inv.Notes, &inv.Subtotal, &inv.TotalDiscount, &inv.TotalTax,
		&inv.TotalAmount, &inv.AmountPaid, &inv.Balance, &inv.Version,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.Status = InvoiceStatus(status)

	lines, err := r.listLines(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return &inv, nil
}

// GetInvoiceWithDetails loads the invoice plus customer name and payments.
func (r *Repository) GetInvoiceWithDetails(ctx context.Context, id int64) (*InvoiceWithDetails, error) {
	inv, err := r.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	customerName, err := r.lookupCustomerName(ctx, inv.CustomerID)
	if err != nil {
		return nil, err
	}

	payments, err := r.listPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	return &InvoiceWithDetails{
		Invoice:      *inv,
		CustomerName: customerName,
		Payments:     payments,
	}, nil
}

// SaveInvoice writes the mutated aggregate back. The version predicate rejects
// writes that lost a concurrent race; lines are diffed so surviving line IDs
// stay stable across saves.
func (r *Repository) SaveInvoice(ctx context.Context, inv *Invoice) error {
	query := `
		UPDATE invoices
		SET status = $3, notes = $4, subtotal = $5, total_discount = $6,
			total_tax = $7, total_amount = $8, amount_paid = $9, balance = $10,
			version = version + 1, updated_at = $11
		WHERE id = $1 AND version = $2`

	result, err := r.db.Exec(ctx, query,
		inv.ID, inv.Version, string(inv.Status), inv.Notes,
		inv.Subtotal, inv.TotalDiscount, inv.TotalTax, inv.TotalAmount,
		inv.AmountPaid, inv.Balance, inv.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	inv.Version++

	if err := r.syncLines(ctx, inv); err != nil {
		return err
	}
	return r.appendEvents(ctx, inv)
}

// CreatePayment inserts a payment row.
func (r *Repository) CreatePayment(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payments (
			invoice_id, payment_date, amount, method, reference, notes,
			created_by, idempotency_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		p.InvoiceID, p.PaymentDate, p.Amount, string(p.Method),
		p.Reference, p.Notes, p.CreatedBy, p.IdempotencyKey, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return ErrDuplicatePayment
		}
		return err
	}
	return nil
}

// PaymentExistsByKey reports whether a payment with the idempotency key was
// already recorded for the invoice.
func (r *Repository) PaymentExistsByKey(ctx context.Context, invoiceID int64, key string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM payments WHERE invoice_id = $1 AND idempotency_key = $2)",
		invoiceID, key,
	).Scan(&exists)
	return exists, err
}

// NextInvoiceNumber atomically advances the per-year sequence. The upsert
// starts a fresh sequence at 1 when the year row does not exist yet, which is
// the year-rollover rule.
func (r *Repository) NextInvoiceNumber(ctx context.Context, year int) (int64, error) {
	query := `
		INSERT INTO invoice_sequences (year, last_value)
		VALUES ($1, 1)
		ON CONFLICT (year)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`

	var seq int64
	err := r.db.QueryRow(ctx, query, year).Scan(&seq)
	return seq, err
}

// ListInvoices returns invoices with optional filtering.
func (r *Repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	query := `
		SELECT id, customer_id, number, issue_date, due_date, status, payment_terms,
			notes, subtotal, total_discount, total_tax, total_amount, amount_paid,
			balance, version, created_at, updated_at
		FROM invoices
		WHERE 1=1`

	args := []any{}
	argNum := 1

	if req.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(req.Status))
		argNum++
	}
	if req.CustomerID > 0 {
		query += fmt.Sprintf(" AND customer_id = $%d", argNum)
		args = append(args, req.CustomerID)
		argNum++
	}
	if !req.FromDate.IsZero() {
		query += fmt.Sprintf(" AND issue_date >= $%d", argNum)
		args = append(args, req.FromDate)
		argNum++
	}
	if !req.ToDate.IsZero() {
		query += fmt.Sprintf(" AND issue_date <= $%d", argNum)
		args = append(args, req.ToDate)
		argNum++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if req.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, req.Limit)
		argNum++
	}
	if req.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, req.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		var status string
		err := rows.Scan(
			&inv.ID, &inv.CustomerID, &inv.Number, &inv.IssueDate, &inv.DueDate, &status,
			&inv.PaymentTerms, &inv.Notes, &inv.Subtotal, &inv.TotalDiscount, &inv.TotalTax,
			&inv.TotalAmount, &inv.AmountPaid, &inv.Balance, &inv.Version,
			&inv.CreatedAt, &inv.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		inv.Status = InvoiceStatus(status)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

const outstandingPageSize = 500

// ListOutstanding returns every Sent invoice carrying a balance. The aging
// report and the overdue scan both need the full set, so the query pages
// through the table instead of capping it.
func (r *Repository) ListOutstanding(ctx context.Context) ([]Invoice, error) {
	var out []Invoice
	for offset := 0; ; offset += outstandingPageSize {
		page, err := r.ListInvoices(ctx, ListInvoicesRequest{
			Status: StatusSent,
			Limit:  outstandingPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < outstandingPageSize {
			return out, nil
		}
	}
}

// --- helpers ---

func (r *Repository) insertLine(ctx context.Context, invoiceID int64, line *LineItem, position int) error {
	query := `
		INSERT INTO invoice_lines (
			invoice_id, description, quantity, unit_price, discount_pct, tax_rate,
			subtotal, discount, taxable, tax, total, position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	return r.db.QueryRow(ctx, query,
		invoiceID, line.Description, line.Quantity, line.UnitPrice,
		line.DiscountPct, line.TaxRate, line.Subtotal, line.Discount,
		line.Taxable, line.Tax, line.Total, position,
	).Scan(&line.ID)
}

// syncLines deletes rows removed from the aggregate, inserts new ones and
// rewrites every position from the slice order. Removals leave gaps in the
// stored positions, so appending at the slice index alone would interleave a
// new line between survivors on rehydration.
func (r *Repository) syncLines(ctx context.Context, inv *Invoice) error {
	keep := make(map[int64]bool, len(inv.Lines))
	for _, line := range inv.Lines {
		if line.ID > 0 {
			keep[line.ID] = true
		}
	}

	rows, err := r.db.Query(ctx, "SELECT id FROM invoice_lines WHERE invoice_id = $1", inv.ID)
	if err != nil {
		return err
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		if _, err := r.db.Exec(ctx, "DELETE FROM invoice_lines WHERE id = $1", id); err != nil {
			return err
		}
	}
	for i := range inv.Lines {
		line := &inv.Lines[i]
		if line.ID == 0 {
			if err := r.insertLine(ctx, inv.ID, line, i); err != nil {
				return err
			}
			continue
		}
		_, err := r.db.Exec(ctx,
			"UPDATE invoice_lines SET position = $1 WHERE id = $2", i, line.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) listLines(ctx context.Context, invoiceID int64) ([]LineItem, error) {
	query := `
		SELECT id, description, quantity, unit_price, discount_pct, tax_rate,
			subtotal, discount, taxable, tax, total
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY position, id`

	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []LineItem
	for rows.Next() {
		var line LineItem
		err := rows.Scan(
			&line.ID, &line.Description, &line.Quantity, &line.UnitPrice,
			&line.DiscountPct, &line.TaxRate, &line.Subtotal, &line.Discount,
			&line.Taxable, &line.Tax, &line.Total,
		)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// lookupCustomerName tolerates a missing customer row, leaving the name
// blank. Any other failure surfaces.
func (r *Repository) lookupCustomerName(ctx context.Context, customerID int64) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, "SELECT name FROM customers WHERE id = $1", customerID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

func (r *Repository) listPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	query := `
		SELECT id, invoice_id, payment_date, amount, method, reference, notes,
			created_by, COALESCE(idempotency_key, ''), created_at
		FROM payments
		WHERE invoice_id = $1
		ORDER BY payment_date, id`

	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		var method string
		err := rows.Scan(
			&p.ID, &p.InvoiceID, &p.PaymentDate, &p.Amount, &method,
			&p.Reference, &p.Notes, &p.CreatedBy, &p.IdempotencyKey, &p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		p.Method = PaymentMethod(method)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// appendEvents drains pending aggregate events into the outbox table. The
// worker dispatches them after commit.
func (r *Repository) appendEvents(ctx context.Context, inv *Invoice) error {
	for _, evt := range inv.DrainEvents() {
		_, err := r.db.Exec(ctx, `
			INSERT INTO invoice_events (
				id, type, invoice_id, number, customer_id, amount, balance,
				status, occurred_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			evt.ID, evt.Type, inv.ID, evt.Number, evt.CustomerID,
			evt.Amount, evt.Balance, string(evt.Status), evt.OccurredAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
