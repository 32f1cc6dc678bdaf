package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"form-relay/internal/api"
	"form-relay/internal/config"
	"form-relay/internal/db"
	"form-relay/internal/mailer"
	"form-relay/internal/registry"
	"form-relay/internal/templates"
)

func main() {
	tracer.Start(
		tracer.WithService("form-relay"),
		tracer.WithEnv(os.Getenv("DD_ENV")),
	)
	defer tracer.Stop()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		log.Fatalf("Failed to build tenant registry: %v", err)
	}

	store, err := templates.Load(cfg.TemplatesDir)
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	handler := api.NewHandler(reg, store, mailer.NewSMTP())
	router := api.NewRouter(handler, reg)

	log.Printf("Form relay starting on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, router))
}

// buildRegistry loads the tenant and credential registries once, from
// Postgres when DB_DSN is configured and from the JSON files otherwise.
func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.DBDSN == "" {
		return registry.LoadFiles(cfg.SitesFile, cfg.CredentialsFile)
	}

	store, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	tenants, err := store.Tenants()
	if err != nil {
		return nil, err
	}
	creds, err := store.Credentials()
	if err != nil {
		return nil, err
	}
	return registry.New(tenants, creds)
}
