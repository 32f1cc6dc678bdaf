// Package registry holds the immutable tenant and SMTP credential maps built
// once at startup. Lookups are pure and safe for unlimited concurrent
// readers; nothing mutates a Registry after New returns.
package registry

import (
	"errors"
	"fmt"

	"form-relay/internal/models"
)

var (
	// ErrUnknownSite means the site_id is not registered at all.
	ErrUnknownSite = errors.New("unknown site ID")
	// ErrMissingCredentials means the site is registered but has no SMTP
	// credentials configured.
	ErrMissingCredentials = errors.New("missing SMTP credentials")
)

type Registry struct {
	tenants     map[string]models.Tenant
	credentials map[string]models.SMTPCredentials
	origins     map[string]struct{}
}

// New builds a Registry from already-parsed tenant and credential lists.
// Every credential entry must reference a registered site; the reverse is not
// required. Credentials that are present but incomplete are rejected here so
// that a bad entry can never surface mid-request.
func New(tenants []models.Tenant, credentials []models.SMTPCredentials) (*Registry, error) {
	r := &Registry{
		tenants:     make(map[string]models.Tenant, len(tenants)),
		credentials: make(map[string]models.SMTPCredentials, len(credentials)),
		origins:     make(map[string]struct{}, len(tenants)),
	}

	for _, t := range tenants {
		if t.SiteID == "" {
			return nil, errors.New("tenant with empty site_id")
		}
		if t.AllowedOrigin == "" {
			return nil, fmt.Errorf("tenant %q has no allowed_origin", t.SiteID)
		}
		if _, dup := r.tenants[t.SiteID]; dup {
			return nil, fmt.Errorf("duplicate tenant %q", t.SiteID)
		}
		r.tenants[t.SiteID] = t
		r.origins[t.AllowedOrigin] = struct{}{}
	}

	for _, c := range credentials {
		if _, ok := r.tenants[c.SiteID]; !ok {
			return nil, fmt.Errorf("SMTP credentials for unregistered site %q", c.SiteID)
		}
		if _, dup := r.credentials[c.SiteID]; dup {
			return nil, fmt.Errorf("duplicate SMTP credentials for site %q", c.SiteID)
		}
		c, err := normalize(c)
		if err != nil {
			return nil, err
		}
		r.credentials[c.SiteID] = c
	}

	return r, nil
}

// normalize validates required credential fields and applies the documented
// defaults: secure=tls, from_email=username, from_name=site_id.
func normalize(c models.SMTPCredentials) (models.SMTPCredentials, error) {
	if c.Host == "" || c.Username == "" || c.Password == "" || c.RecipientEmail == "" {
		return c, fmt.Errorf("incomplete SMTP credentials for site %q", c.SiteID)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return c, fmt.Errorf("invalid SMTP port %d for site %q", c.Port, c.SiteID)
	}
	switch c.Secure {
	case models.SecureModeNone, models.SecureModeTLS:
	case "":
		c.Secure = models.SecureModeTLS
	default:
		return c, fmt.Errorf("invalid secure mode %q for site %q", c.Secure, c.SiteID)
	}
	if c.FromEmail == "" {
		c.FromEmail = c.Username
	}
	if c.FromName == "" {
		c.FromName = c.SiteID
	}
	return c, nil
}

// Lookup resolves a site_id to its tenant entry.
func (r *Registry) Lookup(siteID string) (models.Tenant, error) {
	t, ok := r.tenants[siteID]
	if !ok {
		return models.Tenant{}, ErrUnknownSite
	}
	return t, nil
}

// Credentials resolves a site_id to its SMTP delivery settings. A registered
// site without credentials yields ErrMissingCredentials, which is distinct
// from ErrUnknownSite.
func (r *Registry) Credentials(siteID string) (models.SMTPCredentials, error) {
	if _, ok := r.tenants[siteID]; !ok {
		return models.SMTPCredentials{}, ErrUnknownSite
	}
	c, ok := r.credentials[siteID]
	if !ok {
		return models.SMTPCredentials{}, ErrMissingCredentials
	}
	return c, nil
}

// OriginAllowed reports whether origin matches the allowed_origin of any
// registered tenant. The whitelist is flat: it is not keyed by the site_id of
// a particular submission, so the check can run before the submission is
// parsed.
func (r *Registry) OriginAllowed(origin string) bool {
	_, ok := r.origins[origin]
	return ok
}
