package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"form-relay/internal/models"
)

// LoadFiles builds a Registry from the two JSON registry files:
//
//	allowed_sites.json:     {"site_id": "https://allowed.origin", ...}
//	smtp_credentials.json:  {"site_id": {"host": ..., "port": ...}, ...}
//
// Any read or parse failure is returned to the caller, which is expected to
// treat it as fatal; this is the only point where the process may refuse to
// start.
func LoadFiles(sitesPath, credentialsPath string) (*Registry, error) {
	sites, err := readJSON[map[string]string](sitesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", sitesPath, err)
	}
	creds, err := readJSON[map[string]models.SMTPCredentials](credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", credentialsPath, err)
	}

	tenants := make([]models.Tenant, 0, len(sites))
	for siteID, origin := range sites {
		tenants = append(tenants, models.Tenant{SiteID: siteID, AllowedOrigin: origin})
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].SiteID < tenants[j].SiteID })

	credentials := make([]models.SMTPCredentials, 0, len(creds))
	for siteID, c := range creds {
		c.SiteID = siteID
		credentials = append(credentials, c)
	}
	sort.Slice(credentials, func(i, j int) bool { return credentials[i].SiteID < credentials[j].SiteID })

	return New(tenants, credentials)
}

func readJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}
