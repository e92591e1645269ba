package customers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryCustomerRepo struct {
	customers map[int64]*Customer
	balances  map[int64]decimal.Decimal
	invoices  map[int64]int64
	nextID    int64
}

func newMemoryCustomerRepo() *memoryCustomerRepo {
	return &memoryCustomerRepo{
		customers: make(map[int64]*Customer),
		balances:  make(map[int64]decimal.Decimal),
		invoices:  make(map[int64]int64),
	}
}

func (r *memoryCustomerRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryCustomerRepo) Get(ctx context.Context, id int64) (*Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memoryCustomerRepo) List(ctx context.Context, req ListCustomersRequest) ([]CustomerWithStats, int, error) {
	var out []CustomerWithStats
	for _, c := range r.customers {
		if req.ActiveOnly && c.DeletedAt != nil {
			continue
		}
		if req.Search != nil && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(*req.Search)) {
			continue
		}
		balance, ok := r.balances[c.ID]
		if !ok {
			balance = decimal.Zero
		}
		out = append(out, CustomerWithStats{
			Customer:     *c,
			InvoiceCount: r.invoices[c.ID],
			OpenBalance:  balance,
		})
	}
	return out, len(out), nil
}

func (r *memoryCustomerRepo) Create(ctx context.Context, customer Customer) (int64, error) {
	r.nextID++
	customer.ID = r.nextID
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = customer.CreatedAt
	r.customers[customer.ID] = &customer
	return customer.ID, nil
}

func (r *memoryCustomerRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	c, ok := r.customers[id]
	if !ok || c.DeletedAt != nil {
		return ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		c.Name = v.(string)
	}
	if v, ok := updates["email"]; ok {
		email := v.(string)
		c.Email = &email
	}
	if v, ok := updates["payment_terms_days"]; ok {
		c.PaymentTermsDays = v.(int)
	}
	return nil
}

func (r *memoryCustomerRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	c, ok := r.customers[id]
	if !ok || c.DeletedAt != nil {
		return ErrNotFound
	}
	c.DeletedAt = &at
	return nil
}

func createRequest() CreateCustomerRequest {
	email := "billing@acme.test"
	return CreateCustomerRequest{
		Name:             "Acme Corp",
		Email:            &email,
		PaymentTermsDays: 30,
		Country:          "US",
	}
}

func TestCreateCustomer(t *testing.T) {
	repo := newMemoryCustomerRepo()
	svc := NewService(repo)

	c, err := svc.Create(context.Background(), createRequest(), 1)
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", c.Name)
	require.True(t, c.Active())
}

func TestCreateCustomerValidation(t *testing.T) {
	svc := NewService(newMemoryCustomerRepo())

	req := createRequest()
	req.Name = ""
	_, err := svc.Create(context.Background(), req, 1)
	require.Error(t, err)

	req = createRequest()
	req.Country = "USA"
	_, err = svc.Create(context.Background(), req, 1)
	require.Error(t, err)
}

func TestUpdateCustomer(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCustomerRepo()
	svc := NewService(repo)

	c, err := svc.Create(ctx, createRequest(), 1)
	require.NoError(t, err)

	name := "Acme Holdings"
	updated, err := svc.Update(ctx, c.ID, UpdateCustomerRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Acme Holdings", updated.Name)
}

func TestUpdateDeletedCustomerFails(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCustomerRepo()
	svc := NewService(repo)

	c, err := svc.Create(ctx, createRequest(), 1)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, c.ID))

	name := "After the fact"
	_, err = svc.Update(ctx, c.ID, UpdateCustomerRequest{Name: &name})
	require.ErrorIs(t, err, ErrDeleted)
}

func TestListFiltersDeleted(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCustomerRepo()
	svc := NewService(repo)

	a, err := svc.Create(ctx, createRequest(), 1)
	require.NoError(t, err)
	req := createRequest()
	req.Name = "Globex"
	b, err := svc.Create(ctx, req, 1)
	require.NoError(t, err)

	repo.invoices[a.ID] = 3
	repo.balances[a.ID] = decimal.RequireFromString("1250.00")

	require.NoError(t, svc.Delete(ctx, b.ID))

	active, _, err := svc.List(ctx, ListCustomersRequest{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, int64(3), active[0].InvoiceCount)
	require.True(t, active[0].OpenBalance.Equal(decimal.RequireFromString("1250.00")))

	all, _, err := svc.List(ctx, ListCustomersRequest{ActiveOnly: false})
	require.NoError(t, err)
	require.Len(t, all, 2)
}
