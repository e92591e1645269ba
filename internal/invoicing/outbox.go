package invoicing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OutboxEvent is a persisted domain event awaiting dispatch.
type OutboxEvent struct {
	ID           string
	Type         string
	InvoiceID    int64
	Number       string
	CustomerID   int64
	Amount       decimal.Decimal
	Balance      decimal.Decimal
	Status       InvoiceStatus
	OccurredAt   time.Time
	DispatchedAt *time.Time
}

// ListUndispatchedEvents returns pending outbox rows, oldest first.
func (r *Repository) ListUndispatchedEvents(ctx context.Context, limit int) ([]OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, type, invoice_id, number, customer_id, amount, balance,
			status, occurred_at
		FROM invoice_events
		WHERE dispatched_at IS NULL
		ORDER BY occurred_at
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var evt OutboxEvent
		var status string
		err := rows.Scan(
			&evt.ID, &evt.Type, &evt.InvoiceID, &evt.Number, &evt.CustomerID,
			&evt.Amount, &evt.Balance, &status, &evt.OccurredAt,
		)
		if err != nil {
			return nil, err
		}
		evt.Status = InvoiceStatus(status)
		events = append(events, evt)
	}
	return events, rows.Err()
}

// MarkEventDispatched stamps the outbox row after successful delivery.
func (r *Repository) MarkEventDispatched(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		"UPDATE invoice_events SET dispatched_at = $2 WHERE id = $1 AND dispatched_at IS NULL",
		id, at)
	return err
}
