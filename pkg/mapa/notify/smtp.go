// Package notify delivers outbound email over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// Config options for the SMTP mailer
type Config struct {
	Host     string // SMTP server host
	Port     int    // SMTP server port
	Username string
	Password string
	From     string // Sender address used on outgoing mail
}

// Mailer sends email through a single SMTP server.
type Mailer struct {
	addr   string
	auth   smtp.Auth
	from   string
	sendFn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a new SMTP mailer
func New(config Config) (*Mailer, error) {
	if config.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if config.From == "" {
		return nil, errors.New("sender address is required")
	}
	if config.Port == 0 {
		config.Port = 587
	}

	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &Mailer{
		addr:   fmt.Sprintf("%s:%d", config.Host, config.Port),
		auth:   auth,
		from:   config.From,
		sendFn: smtp.SendMail,
	}, nil
}

// Send delivers a single HTML email. The context deadline is not
// plumbed into the SMTP dial; callers run Send off the request path.
func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(html)

	if err := m.sendFn(m.addr, m.auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
