// Package mail renders and delivers the transactional emails the auth
// flows send: verification codes and password-reset links.
package mail

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig configures the SMTP mailer. Username and Password are
// optional for servers that accept unauthenticated relay (local dev).
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP delivers mail over plain SMTP with optional AUTH PLAIN.
type SMTP struct {
	addr string
	auth smtp.Auth
	from string
}

// NewSMTP builds an SMTP mailer from cfg.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, fmt.Errorf("smtp mailer: host and port are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp mailer: from address is required")
	}

	m := &SMTP{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from: cfg.From,
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return m, nil
}

// Send delivers one HTML email. The context's deadline is honored by
// running the SMTP exchange in a goroutine; smtp.SendMail itself does
// not take a context.
func (m *SMTP) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := m.message(to, subject, htmlBody)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, m.auth, m.from, []string{to}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SMTP) message(to, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}
