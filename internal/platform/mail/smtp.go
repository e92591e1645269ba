// Package mail provides the outbound SMTP client used by the worker.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Config holds SMTP connection settings.
type Config struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

// Client sends plain-text mail over SMTP.
type Client struct {
	cfg  Config
	auth smtp.Auth
}

// NewClient builds an SMTP client. Auth is only attached when a username is
// configured, so a local relay without auth keeps working.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("mail: smtp address required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail: from address required")
	}
	c := &Client{cfg: cfg}
	if cfg.Username != "" {
		host := cfg.Addr
		if idx := strings.LastIndex(host, ":"); idx >= 0 {
			host = host[:idx]
		}
		c.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return c, nil
}

// Send delivers one plain-text message.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	if err := smtp.SendMail(c.cfg.Addr, c.auth, c.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

// LogSender is the dev fallback when SMTP is not configured. It records the
// message instead of delivering it.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, to, subject, _ string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail suppressed, smtp not configured",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	return nil
}
