package models

// SecureMode selects the transport security used when talking to a
// tenant's SMTP server.
type SecureMode string

const (
	// SecureModeNone sends over the plaintext connection as established.
	SecureModeNone SecureMode = "none"
	// SecureModeTLS upgrades the plaintext connection via STARTTLS before
	// authenticating.
	SecureModeTLS SecureMode = "tls"
)

// Tenant is one registered site that may submit forms.
type Tenant struct {
	SiteID        string `json:"site_id"`
	AllowedOrigin string `json:"allowed_origin"`
}

// SMTPCredentials holds the per-tenant delivery settings. The password is a
// secret and must never appear in logs or responses.
type SMTPCredentials struct {
	SiteID         string     `json:"site_id"`
	Host           string     `json:"host"`
	Port           int        `json:"port"`
	Username       string     `json:"username"`
	Password       string     `json:"password"`
	Secure         SecureMode `json:"secure,omitempty"`
	RecipientEmail string     `json:"recipient_email"`
	FromEmail      string     `json:"from_email,omitempty"`
	FromName       string     `json:"from_name,omitempty"`
}
