// Package db implements the Postgres-backed tenant store. It is only touched
// at startup (registry load) and by the admin CLI; request handling never
// hits the database.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // registers the postgres driver

	"form-relay/internal/models"
)

type Store struct {
	db *sql.DB
}

// Open connects and verifies the connection with a ping.
func Open(driverName, dataSourceName string) (*Store, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection with driver %q: %w", driverName, err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the registry tables if they do not exist.
func (s *Store) Migrate() error {
	const createTenantsSQL = `
    CREATE TABLE IF NOT EXISTS tenants (
        id SERIAL PRIMARY KEY,
        site_id VARCHAR(100) NOT NULL UNIQUE,
        allowed_origin VARCHAR(255) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`
	if _, err := s.db.Exec(createTenantsSQL); err != nil {
		return fmt.Errorf("failed to create tenants table: %w", err)
	}

	const createCredentialsSQL = `
    CREATE TABLE IF NOT EXISTS smtp_credentials (
        id SERIAL PRIMARY KEY,
        site_id VARCHAR(100) NOT NULL UNIQUE REFERENCES tenants(site_id) ON DELETE CASCADE,
        host VARCHAR(255) NOT NULL,
        port INTEGER NOT NULL,
        username VARCHAR(255) NOT NULL,
        password VARCHAR(255) NOT NULL,
        secure VARCHAR(10) NOT NULL DEFAULT 'tls',
        recipient_email VARCHAR(255) NOT NULL,
        from_email VARCHAR(255),
        from_name VARCHAR(255),
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`
	if _, err := s.db.Exec(createCredentialsSQL); err != nil {
		return fmt.Errorf("failed to create smtp_credentials table: %w", err)
	}

	return nil
}

// UpsertTenant registers a site or updates its allowed origin.
func (s *Store) UpsertTenant(t models.Tenant) error {
	_, err := s.db.Exec(`
        INSERT INTO tenants (site_id, allowed_origin) VALUES ($1, $2)
        ON CONFLICT (site_id) DO UPDATE SET allowed_origin = EXCLUDED.allowed_origin`,
		t.SiteID, t.AllowedOrigin)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant %q: %w", t.SiteID, err)
	}
	return nil
}

// UpsertCredentials stores or replaces the SMTP settings for a site.
func (s *Store) UpsertCredentials(c models.SMTPCredentials) error {
	_, err := s.db.Exec(`
        INSERT INTO smtp_credentials
            (site_id, host, port, username, password, secure, recipient_email, from_email, from_name)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''))
        ON CONFLICT (site_id) DO UPDATE SET
            host = EXCLUDED.host,
            port = EXCLUDED.port,
            username = EXCLUDED.username,
            password = EXCLUDED.password,
            secure = EXCLUDED.secure,
            recipient_email = EXCLUDED.recipient_email,
            from_email = EXCLUDED.from_email,
            from_name = EXCLUDED.from_name`,
		c.SiteID, c.Host, c.Port, c.Username, c.Password, string(c.Secure),
		c.RecipientEmail, c.FromEmail, c.FromName)
	if err != nil {
		return fmt.Errorf("failed to upsert credentials for %q: %w", c.SiteID, err)
	}
	return nil
}

// DeleteTenant removes a site; its credentials go with it via the cascade.
// Returns the number of deleted tenant rows.
func (s *Store) DeleteTenant(siteID string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM tenants WHERE site_id = $1`, siteID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tenant %q: %w", siteID, err)
	}
	return res.RowsAffected()
}

// Tenants returns all registered sites.
func (s *Store) Tenants() ([]models.Tenant, error) {
	rows, err := s.db.Query(`SELECT site_id, allowed_origin FROM tenants ORDER BY site_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.SiteID, &t.AllowedOrigin); err != nil {
			return nil, fmt.Errorf("failed to scan tenant row: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// Credentials returns all stored SMTP settings. Optional columns come back
// empty and get their defaults applied during registry construction.
func (s *Store) Credentials() ([]models.SMTPCredentials, error) {
	rows, err := s.db.Query(`
        SELECT site_id, host, port, username, password, secure, recipient_email,
               COALESCE(from_email, ''), COALESCE(from_name, '')
        FROM smtp_credentials ORDER BY site_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query smtp credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.SMTPCredentials
	for rows.Next() {
		var c models.SMTPCredentials
		var secure string
		if err := rows.Scan(&c.SiteID, &c.Host, &c.Port, &c.Username, &c.Password,
			&secure, &c.RecipientEmail, &c.FromEmail, &c.FromName); err != nil {
			return nil, fmt.Errorf("failed to scan credentials row: %w", err)
		}
		c.Secure = models.SecureMode(secure)
		creds = append(creds, c)
	}
	return creds, rows.Err()
}
