package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerline/ledgerline/internal/customers"
	"github.com/ledgerline/ledgerline/internal/invoicing"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// OutstandingLister returns Sent invoices that still carry a balance.
type OutstandingLister interface {
	ListOutstanding(ctx context.Context) ([]invoicing.Invoice, error)
}

// Deduper guards against sending the same reminder twice.
type Deduper interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// OverdueScanJob runs daily and enqueues one reminder per overdue invoice
// per day. The dedup store absorbs reruns after a crashed batch.
type OverdueScanJob struct {
	Invoices   OutstandingLister
	Recipients RecipientLookup
	Mail       Enqueuer
	Dedup      Deduper
	Logger     *slog.Logger
	clock      func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(invoices OutstandingLister, recipients RecipientLookup, mail Enqueuer, dedup Deduper, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{
		Invoices:   invoices,
		Recipients: recipients,
		Mail:       mail,
		Dedup:      dedup,
		Logger:     logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one overdue scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.now()
	}

	logger := j.logger().With(slog.String("as_of", asOf.Format("2006-01-02")))

	outstanding, err := j.Invoices.ListOutstanding(ctx)
	if err != nil {
		logger.Error("listing outstanding invoices failed", slog.Any("error", err))
		return err
	}

	var overdue, reminded, skipped int
	for _, inv := range outstanding {
		if !inv.DueDate.Before(truncateToDay(asOf)) {
			continue
		}
		overdue++

		key := fmt.Sprintf("reminder:%d:%s", inv.ID, asOf.Format("2006-01-02"))
		if j.Dedup != nil {
			if err := j.Dedup.CheckAndInsert(ctx, key, "invoicing"); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					skipped++
					continue
				}
				return err
			}
		}

		to, err := j.recipientEmail(ctx, inv.CustomerID)
		if err != nil {
			j.releaseDedupKey(ctx, logger, key)
			return err
		}
		if to == "" {
			logger.Warn("no email on file, skipping reminder",
				slog.Int64("customer_id", inv.CustomerID),
				slog.String("invoice", inv.Number),
			)
			continue
		}
		if _, err := j.Mail.EnqueueSendEmail(ctx, OverdueReminderEmail(to, inv, asOf)); err != nil {
			j.releaseDedupKey(ctx, logger, key)
			return err
		}
		reminded++
	}

	logger.Info("overdue scan complete",
		slog.Int("outstanding", len(outstanding)),
		slog.Int("overdue", overdue),
		slog.Int("reminded", reminded),
		slog.Int("already_reminded", skipped),
	)
	return nil
}

// releaseDedupKey frees a claimed reminder key so the next run retries the
// invoice after a transient failure.
func (j *OverdueScanJob) releaseDedupKey(ctx context.Context, logger *slog.Logger, key string) {
	if j.Dedup == nil {
		return
	}
	store, ok := j.Dedup.(interface {
		Delete(context.Context, string) error
	})
	if !ok {
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		logger.Warn("dedup key release failed", slog.Any("error", err))
	}
}

func (j *OverdueScanJob) recipientEmail(ctx context.Context, customerID int64) (string, error) {
	if j.Recipients == nil {
		return "", nil
	}
	cust, err := j.Recipients.Get(ctx, customerID)
	if errors.Is(err, customers.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if cust.Email == nil {
		return "", nil
	}
	return *cust.Email, nil
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOverdueScan))
	}
	return slog.Default().With(slog.String("job", TaskOverdueScan))
}

func (j *OverdueScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
