package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/ledgerline/internal/customers"
	"github.com/ledgerline/ledgerline/internal/invoicing"
	"github.com/ledgerline/ledgerline/internal/shared"
)

const outboxDispatchConcurrency = 4

// OutboxSource lists and stamps pending invoice events.
type OutboxSource interface {
	ListUndispatchedEvents(ctx context.Context, limit int) ([]invoicing.OutboxEvent, error)
	MarkEventDispatched(ctx context.Context, id string, at time.Time) error
}

// RecipientLookup resolves the customer a notification goes to.
type RecipientLookup interface {
	Get(ctx context.Context, id int64) (*customers.Customer, error)
}

// Enqueuer pushes mail tasks onto the queue.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// CacheBumper invalidates cached summaries after events flow out.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// OutboxDispatchJob drains the invoice event outbox: customer-facing events
// become mail tasks, everything processed gets its dispatched_at stamped.
type OutboxDispatchJob struct {
	Source     OutboxSource
	Recipients RecipientLookup
	Mail       Enqueuer
	Cache      CacheBumper
	Audit      AuditRecorder
	Logger     *slog.Logger
	clock      func() time.Time
}

// NewOutboxDispatchJob initialises the outbox dispatch handler.
func NewOutboxDispatchJob(source OutboxSource, recipients RecipientLookup, mail Enqueuer, cache CacheBumper, audit AuditRecorder, logger *slog.Logger) *OutboxDispatchJob {
	return &OutboxDispatchJob{
		Source:     source,
		Recipients: recipients,
		Mail:       mail,
		Cache:      cache,
		Audit:      audit,
		Logger:     logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one dispatch batch.
func (j *OutboxDispatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("outbox dispatch: handler not configured")
	}
	var payload OutboxDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 100
	}

	start := j.now()
	logger := j.logger()

	events, err := j.Source.ListUndispatchedEvents(ctx, payload.BatchSize)
	if err != nil {
		logger.Error("listing outbox failed", slog.Any("error", err))
		return err
	}
	if len(events) == 0 {
		return nil
	}

	var dispatched, mailed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(outboxDispatchConcurrency)
	for _, evt := range events {
		evt := evt
		g.Go(func() error {
			sent, err := j.dispatchOne(gctx, evt)
			if err != nil {
				return err
			}
			dispatched.Add(1)
			if sent {
				mailed.Add(1)
			}
			return nil
		})
	}
	runErr := g.Wait()

	if dispatched.Load() > 0 {
		if j.Cache != nil {
			if err := j.Cache.Bump(ctx); err != nil {
				logger.Warn("summary cache bump failed", slog.Any("error", err))
			}
		}
		if j.Audit != nil {
			if err := j.Audit.Record(ctx, shared.AuditLog{
				ActorID:  0,
				Action:   "outbox.dispatch",
				Entity:   "invoice_events",
				EntityID: "batch",
				Meta: map[string]any{
					"dispatched": dispatched.Load(),
					"mailed":     mailed.Load(),
				},
				At: j.now(),
			}); err != nil {
				logger.Warn("audit record failed", slog.Any("error", err))
			}
		}
	}

	logger.Info("outbox dispatch complete",
		slog.Int("pending", len(events)),
		slog.Int64("dispatched", dispatched.Load()),
		slog.Int64("mailed", mailed.Load()),
		slog.Duration("duration", time.Since(start)),
	)
	return runErr
}

// dispatchOne reports whether a mail task was enqueued for the event.
func (j *OutboxDispatchJob) dispatchOne(ctx context.Context, evt invoicing.OutboxEvent) (bool, error) {
	mailed := false
	switch evt.Type {
	case invoicing.EventInvoiceSent, invoicing.EventPaymentRecorded:
		to, err := j.recipientEmail(ctx, evt.CustomerID)
		if err != nil {
			return false, err
		}
		if to == "" {
			j.logger().Warn("no email on file, skipping notification",
				slog.Int64("customer_id", evt.CustomerID),
				slog.String("invoice", evt.Number),
			)
			break
		}
		var mail SendEmailPayload
		if evt.Type == invoicing.EventInvoiceSent {
			mail = InvoiceSentEmail(to, evt)
		} else {
			mail = PaymentReceivedEmail(to, evt)
		}
		if _, err := j.Mail.EnqueueSendEmail(ctx, mail); err != nil {
			return false, err
		}
		mailed = true
	default:
		// Created and line mutation events are audit trail only.
	}
	if err := j.Source.MarkEventDispatched(ctx, evt.ID, j.now()); err != nil {
		return mailed, err
	}
	return mailed, nil
}

func (j *OutboxDispatchJob) recipientEmail(ctx context.Context, customerID int64) (string, error) {
	if j.Recipients == nil {
		return "", nil
	}
	cust, err := j.Recipients.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, customers.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if cust.Email == nil {
		return "", nil
	}
	return *cust.Email, nil
}

func (j *OutboxDispatchJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOutboxDispatch))
	}
	return slog.Default().With(slog.String("job", TaskOutboxDispatch))
}

func (j *OutboxDispatchJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
