package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port            string
	SitesFile       string
	CredentialsFile string
	TemplatesDir    string

	// Optional Postgres registry source. When DSN is set the registries are
	// loaded from the database instead of the JSON files.
	DBDriver string
	DBDSN    string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:            os.Getenv("PORT"),
		SitesFile:       os.Getenv("SITES_FILE"),
		CredentialsFile: os.Getenv("SMTP_CREDENTIALS_FILE"),
		TemplatesDir:    os.Getenv("TEMPLATES_DIR"),
		DBDriver:        os.Getenv("DB_DRIVER"),
		DBDSN:           os.Getenv("DB_DSN"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
	}
	if cfg.SitesFile == "" {
		cfg.SitesFile = "allowed_sites.json"
	}
	if cfg.CredentialsFile == "" {
		cfg.CredentialsFile = "smtp_credentials.json"
	}
	if cfg.TemplatesDir == "" {
		cfg.TemplatesDir = "templates"
	}
	if cfg.DBDSN != "" && cfg.DBDriver == "" {
		cfg.DBDriver = "postgres"
	}

	return cfg, nil
}
