package mailer

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/mail"
	"net/textproto"

	"form-relay/internal/models"
)

// Compose builds the rendered email for a submission from one site using that
// site's delivery settings.
func Compose(siteID string, creds models.SMTPCredentials, htmlBody string) models.Email {
	return models.Email{
		Subject:   fmt.Sprintf("New Contact Form Submission from %s", siteID),
		FromName:  creds.FromName,
		FromEmail: creds.FromEmail,
		To:        creds.RecipientEmail,
		HTMLBody:  htmlBody,
	}
}

// buildMessage serializes the email as a multipart/alternative MIME message
// with a single text/html part.
func buildMessage(email models.Email) ([]byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset="utf-8"`},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create HTML part: %w", err)
	}
	if _, err := part.Write([]byte(email.HTMLBody)); err != nil {
		return nil, fmt.Errorf("failed to write HTML body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize MIME body: %w", err)
	}

	from := mail.Address{Name: email.FromName, Address: email.FromEmail}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from.String())
	fmt.Fprintf(&msg, "To: %s\r\n", email.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", email.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n", w.Boundary())
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	return msg.Bytes(), nil
}
