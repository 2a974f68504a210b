package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/exclusivemerch/store-backend/pkg/config"
	"github.com/exclusivemerch/store-backend/pkg/logger"
)

// ErrNotConfigured is returned by Send when SMTP credentials are missing.
var ErrNotConfigured = errors.New("mailer not configured")

// Message is one outgoing html mail.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers mail messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends html mail through an authenticated SMTP relay.
type SMTPMailer struct {
	cfg     config.SMTPConfig
	logg    *logger.Logger
	send    sendFunc
	now     func() time.Time
	enabled bool
}

// New builds the mailer. A mailer without host or credentials is returned
// disabled so local environments can run without SMTP.
func New(cfg config.SMTPConfig, logg *logger.Logger) *SMTPMailer {
	m := &SMTPMailer{
		cfg:  cfg,
		logg: logg,
		send: smtp.SendMail,
		now:  time.Now,
	}
	m.enabled = strings.TrimSpace(cfg.Host) != "" &&
		cfg.Port > 0 &&
		strings.TrimSpace(cfg.Username) != "" &&
		cfg.Password != ""
	if !m.enabled && logg != nil {
		logg.Warn(context.Background(), "mailer not configured; emails will not be sent")
	}
	return m
}

// Enabled reports whether Send will attempt delivery.
func (m *SMTPMailer) Enabled() bool {
	return m != nil && m.enabled
}

func (m *SMTPMailer) from() string {
	if from := strings.TrimSpace(m.cfg.From); from != "" {
		return from
	}
	return m.cfg.Username
}

// Send delivers msg. The context bounds nothing inside net/smtp, it is only
// checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.Enabled() {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("mail %q has no recipients", msg.Subject)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	body := m.compose(msg)
	if err := m.send(m.cfg.Addr(), auth, m.from(), msg.To, body); err != nil {
		return fmt.Errorf("send mail %q: %w", msg.Subject, err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.from())
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", sanitizeHeader(msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", m.now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.HTML)
	return buf.Bytes()
}

func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
