package customers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/db"
)

var (
	ErrNotFound = errors.New("customers: not found")
	ErrDeleted  = errors.New("customers: deleted")
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context, req ListCustomersRequest) ([]CustomerWithStats, int, error)
	Create(ctx context.Context, customer Customer) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) Get(ctx context.Context, id int64) (*Customer, error) {
	query := `
		SELECT id, name, email, phone, tax_id, payment_terms_days,
			address_line1, address_line2, city, state, postal_code, country,
			notes, created_by, deleted_at, created_at, updated_at
		FROM customers
		WHERE id = $1`

	var c Customer
	var email, phone, taxID, addr1, addr2, city, state, postal, notes pgtype.Text
	var deletedAt pgtype.Timestamptz

	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &email, &phone, &taxID, &c.PaymentTermsDays,
		&addr1, &addr2, &city, &state, &postal, &c.Country,
		&notes, &c.CreatedBy, &deletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Email = textPtr(email)
	c.Phone = textPtr(phone)
	c.TaxID = textPtr(taxID)
	c.AddressLine1 = textPtr(addr1)
	c.AddressLine2 = textPtr(addr2)
	c.City = textPtr(city)
	c.State = textPtr(state)
	c.PostalCode = textPtr(postal)
	c.Notes = textPtr(notes)
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return &c, nil
}

// List returns customers with per-row invoice count and open balance. The
// aggregates come from one LEFT JOIN grouped query rather than a follow-up
// query per customer.
func (r *repository) List(ctx context.Context, req ListCustomersRequest) ([]CustomerWithStats, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.ActiveOnly {
		conditions = append(conditions, "c.deleted_at IS NULL")
	}
	if req.Search != nil && *req.Search != "" {
		searchPattern := "%" + *req.Search + "%"
		conditions = append(conditions, fmt.Sprintf("(c.name ILIKE $%d OR c.email ILIKE $%d)", argPos, argPos))
		args = append(args, searchPattern)
		argPos++
	}

	whereClause := ""
	for i, cond := range conditions {
		if i == 0 {
			whereClause = "WHERE " + cond
		} else {
			whereClause += " AND " + cond
		}
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM customers c %s", whereClause)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT c.id, c.name, c.email, c.phone, c.tax_id, c.payment_terms_days,
			c.address_line1, c.address_line2, c.city, c.state, c.postal_code,
			c.country, c.notes, c.created_by, c.deleted_at, c.created_at, c.updated_at,
			COUNT(i.id) AS invoice_count,
			COALESCE(SUM(i.balance) FILTER (WHERE i.status = 'SENT'), 0) AS open_balance
		FROM customers c
		LEFT JOIN invoices i ON i.customer_id = c.id
		%s
		GROUP BY c.id
		ORDER BY c.name
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)

	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []CustomerWithStats
	for rows.Next() {
		var cs CustomerWithStats
		var email, phone, taxID, addr1, addr2, city, state, postal, notes pgtype.Text
		var deletedAt pgtype.Timestamptz

		err := rows.Scan(
			&cs.ID, &cs.Name, &email, &phone, &taxID, &cs.PaymentTermsDays,
			&addr1, &addr2, &city, &state, &postal, &cs.Country,
			&notes, &cs.CreatedBy, &deletedAt, &cs.CreatedAt, &cs.UpdatedAt,
			&cs.InvoiceCount, &cs.OpenBalance,
		)
		if err != nil {
			return nil, 0, err
		}

		cs.Email = textPtr(email)
		cs.Phone = textPtr(phone)
		cs.TaxID = textPtr(taxID)
		cs.AddressLine1 = textPtr(addr1)
		cs.AddressLine2 = textPtr(addr2)
		cs.City = textPtr(city)
		cs.State = textPtr(state)
		cs.PostalCode = textPtr(postal)
		cs.Notes = textPtr(notes)
		if deletedAt.Valid {
			cs.DeletedAt = &deletedAt.Time
		}
		out = append(out, cs)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, customer Customer) (int64, error) {
	query := `
		INSERT INTO customers (
			name, email, phone, tax_id, payment_terms_days,
			address_line1, address_line2, city, state, postal_code, country,
			notes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id`

	var id int64
	err := r.db.QueryRow(ctx, query,
		customer.Name,
		textValue(customer.Email),
		textValue(customer.Phone),
		textValue(customer.TaxID),
		customer.PaymentTermsDays,
		textValue(customer.AddressLine1),
		textValue(customer.AddressLine2),
		textValue(customer.City),
		textValue(customer.State),
		textValue(customer.PostalCode),
		customer.Country,
		textValue(customer.Notes),
		customer.CreatedBy,
	).Scan(&id)
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	allowed := []string{
		"name", "email", "phone", "tax_id", "payment_terms_days",
		"address_line1", "address_line2", "city", "state", "postal_code",
		"country", "notes",
	}

	query := "UPDATE customers SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, col := range allowed {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d AND deleted_at IS NULL", argPos)
	args = append(args, id)

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete stamps deleted_at; the row stays for invoice history.
func (r *repository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.Exec(ctx,
		"UPDATE customers SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL",
		id, at)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	val := t.String
	return &val
}

func textValue(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}
