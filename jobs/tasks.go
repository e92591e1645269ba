package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskOutboxDispatch drains pending invoice events to their consumers.
	TaskOutboxDispatch = "invoice:outbox_dispatch"
	// TaskOverdueScan finds Sent invoices past their due date.
	TaskOverdueScan = "invoice:overdue_scan"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// OutboxDispatchPayload bounds one dispatch run.
type OutboxDispatchPayload struct {
	BatchSize int `json:"batch_size"`
}

// NewOutboxDispatchTask constructs an outbox dispatch task.
func NewOutboxDispatchTask(batchSize int) (*asynq.Task, error) {
	data, err := json.Marshal(OutboxDispatchPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOutboxDispatch, data), nil
}

// OverdueScanPayload carries the reference date for the scan; zero means the
// scan runs against the current date.
type OverdueScanPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewOverdueScanTask constructs an overdue scan task.
func NewOverdueScanTask(asOf time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(OverdueScanPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}
