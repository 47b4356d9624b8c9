package mailer

import (
	"context"
	"strings"

	"github.com/nutriplan-app/apiserver/config"
	gomail "gopkg.in/gomail.v2"
)

// SMTPTransport sends mail through an SMTP relay. An instance built from
// empty settings stays unconfigured and fails every send with
// ErrNotConfigured instead of dialing.
type SMTPTransport struct {
	dialer     *gomail.Dialer
	fromEmail  string
	fromName   string
	configured bool
}

// NewSMTPTransport constructs an SMTP transport from config. Port 465 style
// implicit TLS is selected by cfg.Secure; otherwise the dialer negotiates
// STARTTLS when the server offers it.
func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	t := &SMTPTransport{
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.FromEmail) == "" {
		return t
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.SSL = cfg.Secure
	t.dialer = dialer
	t.configured = true
	return t
}

// IsConfigured reports whether the transport can actually deliver mail.
func (t *SMTPTransport) IsConfigured() bool {
	return t.configured
}

// Send delivers msg over SMTP. The context is consulted before dialing;
// gomail itself has no context support.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if !t.configured {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", t.fromEmail, t.fromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.TextBody != "" {
		m.SetBody("text/plain", msg.TextBody)
		if msg.HTMLBody != "" {
			m.AddAlternative("text/html", msg.HTMLBody)
		}
	} else {
		m.SetBody("text/html", msg.HTMLBody)
	}

	return t.dialer.DialAndSend(m)
}
