// Package mailer delivers rendered emails over SMTP using per-tenant
// credentials. One connection per send: open, deliver, close, never pooled.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"form-relay/internal/models"
)

// smtpTimeout bounds the TCP dial and, as a session deadline, every
// subsequent read and write of one delivery.
const smtpTimeout = 10 * time.Second

// DeliveryError wraps any failure between dialing and QUIT. Callers get the
// underlying cause's description but are not told which stage failed.
type DeliveryError struct {
	Cause error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("email delivery failed: %v", e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// Sender delivers one rendered email with the given credentials.
type Sender interface {
	Send(ctx context.Context, creds models.SMTPCredentials, email models.Email) error
}

// SMTP is the production Sender. It speaks plain SMTP with optional STARTTLS
// upgrade and AUTH PLAIN.
type SMTP struct {
	timeout time.Duration
	// tlsConfig overrides the STARTTLS client configuration; nil verifies
	// the server certificate against the credential host.
	tlsConfig *tls.Config
}

func NewSMTP() *SMTP {
	return &SMTP{timeout: smtpTimeout}
}

// Send performs a complete SMTP transaction for exactly one recipient. With
// SecureModeTLS the connection starts plaintext and upgrades in-band via
// STARTTLS before authenticating. The session is closed on every exit path.
func (s *SMTP) Send(ctx context.Context, creds models.SMTPCredentials, email models.Email) error {
	msg, err := buildMessage(email)
	if err != nil {
		return &DeliveryError{Cause: err}
	}

	addr := net.JoinHostPort(creds.Host, strconv.Itoa(creds.Port))
	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &DeliveryError{Cause: fmt.Errorf("connect to %s: %w", addr, err)}
	}

	// The timeout bounds the whole session, not just the dial: a server
	// that accepts and then stalls must fail within the same bound.
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return &DeliveryError{Cause: fmt.Errorf("set session deadline: %w", err)}
	}

	client, err := smtp.NewClient(conn, creds.Host)
	if err != nil {
		conn.Close()
		return &DeliveryError{Cause: fmt.Errorf("SMTP handshake with %s: %w", addr, err)}
	}
	defer client.Close()

	if creds.Secure == models.SecureModeTLS {
		tlsConfig := s.tlsConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{ServerName: creds.Host}
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return &DeliveryError{Cause: fmt.Errorf("STARTTLS: %w", err)}
		}
	}

	if err := client.Auth(auth(creds)); err != nil {
		return &DeliveryError{Cause: fmt.Errorf("auth: %w", err)}
	}

	if err := client.Mail(email.FromEmail); err != nil {
		return &DeliveryError{Cause: fmt.Errorf("MAIL FROM: %w", err)}
	}
	if err := client.Rcpt(email.To); err != nil {
		return &DeliveryError{Cause: fmt.Errorf("RCPT TO: %w", err)}
	}
	w, err := client.Data()
	if err != nil {
		return &DeliveryError{Cause: fmt.Errorf("DATA: %w", err)}
	}
	if _, err := w.Write(msg); err != nil {
		return &DeliveryError{Cause: fmt.Errorf("write message: %w", err)}
	}
	if err := w.Close(); err != nil {
		return &DeliveryError{Cause: fmt.Errorf("close DATA: %w", err)}
	}

	if err := client.Quit(); err != nil {
		return &DeliveryError{Cause: fmt.Errorf("QUIT: %w", err)}
	}
	return nil
}

// auth picks the AUTH PLAIN implementation for the connection. After a
// STARTTLS upgrade the stdlib PlainAuth is fine; on a deliberately
// unencrypted connection it refuses to run against remote hosts, so
// SecureModeNone uses an equivalent that skips that check.
func auth(creds models.SMTPCredentials) smtp.Auth {
	if creds.Secure == models.SecureModeTLS {
		return smtp.PlainAuth("", creds.Username, creds.Password, creds.Host)
	}
	return &insecurePlainAuth{user: creds.Username, pass: creds.Password}
}

// insecurePlainAuth implements AUTH PLAIN without the stdlib's TLS
// requirement, for tenants that run their SMTP server on a trusted network
// with secure mode "none".
type insecurePlainAuth struct {
	user, pass string
}

func (a *insecurePlainAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return "PLAIN", []byte("\x00" + a.user + "\x00" + a.pass), nil
}

func (a *insecurePlainAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	return nil, nil
}
