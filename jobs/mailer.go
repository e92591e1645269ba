package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// MailSender delivers a single message. The platform SMTP client implements
// it; tests substitute a recorder.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SendEmailJob delivers queued notification mail.
type SendEmailJob struct {
	Sender MailSender
	Logger *slog.Logger
}

// NewSendEmailJob initialises the mail delivery handler.
func NewSendEmailJob(sender MailSender, logger *slog.Logger) *SendEmailJob {
	return &SendEmailJob{Sender: sender, Logger: logger}
}

// Handle delivers one message.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sender == nil {
		return errors.New("send email: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}
	if err := j.Sender.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		j.logger().Error("mail delivery failed",
			slog.String("to", payload.To),
			slog.String("subject", payload.Subject),
			slog.Any("error", err),
		)
		return err
	}
	j.logger().Info("mail delivered",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject),
	)
	return nil
}

func (j *SendEmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeSendEmail))
	}
	return slog.Default().With(slog.String("job", TaskTypeSendEmail))
}
