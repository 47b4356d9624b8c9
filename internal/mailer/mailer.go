package mailer

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when the transport is missing credentials.
// Callers treat it like any other delivery failure: log and move on.
var ErrNotConfigured = errors.New("mail transport not configured")

// Message is a fully composed outbound email.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
}

// Transport delivers a composed message over some channel (SMTP here).
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer wraps a transport with a stable API.
type Mailer struct {
	transport Transport
}

// New constructs a Mailer for the provided transport.
func New(transport Transport) *Mailer {
	return &Mailer{transport: transport}
}

// Send delivers the message through the configured transport.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	return m.transport.Send(ctx, msg)
}
