// Package mail delivers outbound email. When no SMTP host is
// configured the log mailer is used instead, which records the message
// and reports delivery as failed so invoices are never marked SENT
// without a real handoff.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/parkhaus/garage-api/internal/config"
)

// ErrNotConfigured is returned by the log mailer for every send.
var ErrNotConfigured = errors.New("mail: no SMTP host configured")

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends plain text mail through a single SMTP server.
type SMTPMailer struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// LogMailer logs the message and fails the delivery.
type LogMailer struct{}

// New picks the mailer for the given configuration.
func New(cfg *config.Config) Sender {
	if cfg.SMTPHost == "" {
		return LogMailer{}
	}
	return &SMTPMailer{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}
}

// Send delivers one message. The context is consulted before dialing;
// net/smtp itself does not support cancellation mid-send.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := new(strings.Builder)
	fmt.Fprintf(msg, "From: %s\r\n", m.From)
	fmt.Fprintf(msg, "To: %s\r\n", to)
	fmt.Fprintf(msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(msg, "Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(msg, "\r\n%s\r\n", body)

	addr := m.Host + ":" + m.Port
	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}
	return smtp.SendMail(addr, auth, m.From, []string{to}, []byte(msg.String()))
}

// Send logs the message so local runs show what would have gone out.
func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("mail: would send %q to %s (SMTP not configured)", subject, to)
	return ErrNotConfigured
}
