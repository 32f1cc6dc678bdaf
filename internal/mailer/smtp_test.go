package mailer

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"form-relay/internal/models"
)

// fakeSMTP is a minimal scripted SMTP server: AUTH PLAIN, one message per
// session, optional STARTTLS when tlsConfig is set. Received DATA payloads
// land on messages. With tlsConfig set the server refuses AUTH on the
// plaintext connection, so a successful send proves the upgrade happened
// before authentication.
type fakeSMTP struct {
	host       string
	port       int
	rejectAuth bool
	tlsConfig  *tls.Config
	messages   chan string
}

func startFakeSMTP(t *testing.T, rejectAuth bool) *fakeSMTP {
	return serveFakeSMTP(t, &fakeSMTP{rejectAuth: rejectAuth})
}

func startFakeSMTPTLS(t *testing.T, cfg *tls.Config) *fakeSMTP {
	return serveFakeSMTP(t, &fakeSMTP{tlsConfig: cfg})
}

func serveFakeSMTP(t *testing.T, fs *fakeSMTP) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	fs.host = host
	fs.port = port
	fs.messages = make(chan string, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go fs.handle(conn)
		}
	}()
	return fs
}

func (fs *fakeSMTP) handle(raw net.Conn) {
	defer raw.Close()
	conn := raw
	upgraded := false
	br := bufio.NewReader(conn)
	write := func(s string) { fmt.Fprintf(conn, "%s\r\n", s) }

	write("220 127.0.0.1 ESMTP fake")
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			write("250-127.0.0.1")
			if fs.tlsConfig != nil && !upgraded {
				write("250-STARTTLS")
			}
			write("250 AUTH PLAIN")
		case strings.HasPrefix(cmd, "STARTTLS"):
			if fs.tlsConfig == nil || upgraded {
				write("502 command not implemented")
				continue
			}
			write("220 2.0.0 ready to start TLS")
			conn = tls.Server(raw, fs.tlsConfig)
			br = bufio.NewReader(conn)
			upgraded = true
		case strings.HasPrefix(cmd, "AUTH"):
			if fs.tlsConfig != nil && !upgraded {
				write("530 5.7.0 must issue a STARTTLS command first")
				continue
			}
			if fs.rejectAuth {
				write("535 5.7.8 authentication credentials invalid")
			} else {
				write("235 2.7.0 authentication successful")
			}
		case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
			write("250 OK")
		case strings.HasPrefix(cmd, "DATA"):
			write("354 start mail input")
			var data strings.Builder
			for {
				dline, err := br.ReadString('\n')
				if err != nil {
					return
				}
				if strings.TrimRight(dline, "\r\n") == "." {
					break
				}
				data.WriteString(dline)
			}
			fs.messages <- data.String()
			write("250 OK")
		case strings.HasPrefix(cmd, "QUIT"):
			write("221 bye")
			return
		default:
			write("250 OK")
		}
	}
}

func (fs *fakeSMTP) creds() models.SMTPCredentials {
	return models.SMTPCredentials{
		SiteID:         "acme",
		Host:           fs.host,
		Port:           fs.port,
		Username:       "forms@acme.example",
		Password:       "super-secret",
		Secure:         models.SecureModeNone,
		RecipientEmail: "owner@acme.example",
		FromEmail:      "forms@acme.example",
		FromName:       "Acme Contact Form",
	}
}

// serverTLSConfig builds a throwaway self-signed certificate for the fake
// server's STARTTLS upgrade.
func serverTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

func testEmail() models.Email {
	return models.Email{
		Subject:   "New Contact Form Submission from acme",
		FromName:  "Acme Contact Form",
		FromEmail: "forms@acme.example",
		To:        "owner@acme.example",
		HTMLBody:  "<p>hello</p>",
	}
}

func TestSendSuccess(t *testing.T) {
	fs := startFakeSMTP(t, false)

	err := NewSMTP().Send(context.Background(), fs.creds(), testEmail())
	require.NoError(t, err)

	select {
	case msg := <-fs.messages:
		assert.Contains(t, msg, "Subject: New Contact Form Submission from acme")
		assert.Contains(t, msg, "To: owner@acme.example")
		assert.Contains(t, msg, "<p>hello</p>")
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}
}

func TestSendTwiceDeliversTwice(t *testing.T) {
	fs := startFakeSMTP(t, false)
	s := NewSMTP()

	require.NoError(t, s.Send(context.Background(), fs.creds(), testEmail()))
	require.NoError(t, s.Send(context.Background(), fs.creds(), testEmail()))

	// No deduplication: identical submissions produce independent sends.
	for i := 0; i < 2; i++ {
		select {
		case <-fs.messages:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 2 messages, got %d", i)
		}
	}
}

func TestSendStartTLSUpgradesBeforeAuth(t *testing.T) {
	fs := startFakeSMTPTLS(t, serverTLSConfig(t))

	creds := fs.creds()
	creds.Secure = models.SecureModeTLS

	// The certificate is self-signed, so the client must be told to accept it.
	s := &SMTP{timeout: smtpTimeout, tlsConfig: &tls.Config{InsecureSkipVerify: true}}
	err := s.Send(context.Background(), creds, testEmail())
	require.NoError(t, err, "the server rejects AUTH until the session is upgraded")

	select {
	case msg := <-fs.messages:
		assert.Contains(t, msg, "Subject: New Contact Form Submission from acme")
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the message")
	}
}

func TestSendPlaintextAgainstTLSOnlyServerFails(t *testing.T) {
	fs := startFakeSMTPTLS(t, serverTLSConfig(t))

	// Secure mode "none" skips the upgrade, so the server refuses AUTH.
	err := NewSMTP().Send(context.Background(), fs.creds(), testEmail())
	require.Error(t, err)

	var dErr *DeliveryError
	require.ErrorAs(t, err, &dErr)
	assert.Contains(t, err.Error(), "STARTTLS command first")
}

func TestSendAuthFailure(t *testing.T) {
	fs := startFakeSMTP(t, true)

	err := NewSMTP().Send(context.Background(), fs.creds(), testEmail())
	require.Error(t, err)

	var dErr *DeliveryError
	require.ErrorAs(t, err, &dErr)
	assert.NotEmpty(t, err.Error())
	assert.NotContains(t, err.Error(), "super-secret", "the password must never leak into errors")
}

func TestSendConnectFailure(t *testing.T) {
	// Grab a free port and close it again so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	creds := models.SMTPCredentials{
		SiteID:         "acme",
		Host:           host,
		Port:           port,
		Username:       "u",
		Password:       "p",
		Secure:         models.SecureModeNone,
		RecipientEmail: "owner@acme.example",
		FromEmail:      "u",
	}

	sendErr := NewSMTP().Send(context.Background(), creds, testEmail())
	require.Error(t, sendErr)

	var dErr *DeliveryError
	assert.True(t, errors.As(sendErr, &dErr))
}

func TestSendStalledServerFailsWithinTimeout(t *testing.T) {
	// Accept connections but never write the greeting banner.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	creds := models.SMTPCredentials{
		SiteID:         "acme",
		Host:           host,
		Port:           port,
		Username:       "u",
		Password:       "p",
		Secure:         models.SecureModeNone,
		RecipientEmail: "owner@acme.example",
		FromEmail:      "u",
	}

	s := &SMTP{timeout: 250 * time.Millisecond}
	start := time.Now()
	sendErr := s.Send(context.Background(), creds, testEmail())
	elapsed := time.Since(start)

	require.Error(t, sendErr, "a server that accepts and then stalls must not hang the send")
	var dErr *DeliveryError
	require.ErrorAs(t, sendErr, &dErr)
	assert.Less(t, elapsed, 5*time.Second, "the session deadline must cut the stalled connection off")
}
