package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"form-relay/internal/db"
	"form-relay/internal/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Reading configuration from environment.")
	}

	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = "postgres"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is not set")
	}

	store, err := db.Open(driver, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		handleInit(store)
	case "add-site":
		handleAddSite(store)
	case "add-smtp":
		handleAddSMTP(store)
	case "list":
		handleList(store)
	case "delete":
		handleDelete(store)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func handleInit(store *db.Store) {
	if err := store.Migrate(); err != nil {
		log.Fatalf("Database migration failed: %v", err)
	}
	fmt.Println("Registry tables are ready.")
}

func handleAddSite(store *db.Store) {
	cmd := flag.NewFlagSet("add-site", flag.ExitOnError)
	siteID := cmd.String("site", "", "Unique site ID (e.g. 'acme')")
	origin := cmd.String("origin", "", "Allowed origin (e.g. 'https://acme.example')")
	cmd.Parse(os.Args[2:])

	if *siteID == "" || *origin == "" {
		log.Println("Both flags (-site, -origin) are required.")
		cmd.Usage()
		return
	}

	if err := store.UpsertTenant(models.Tenant{SiteID: *siteID, AllowedOrigin: *origin}); err != nil {
		log.Fatalf("Failed to add site: %v", err)
	}
	fmt.Printf("Site %q registered with origin %s.\n", *siteID, *origin)
}

func handleAddSMTP(store *db.Store) {
	cmd := flag.NewFlagSet("add-smtp", flag.ExitOnError)
	siteID := cmd.String("site", "", "Site ID the credentials belong to")
	host := cmd.String("host", "", "SMTP host")
	port := cmd.Int("port", 587, "SMTP port")
	username := cmd.String("username", "", "SMTP username")
	password := cmd.String("password", "", "SMTP password")
	secure := cmd.String("secure", "tls", "Transport security: tls or none")
	recipient := cmd.String("recipient", "", "Recipient email address")
	fromEmail := cmd.String("from-email", "", "From address (defaults to username)")
	fromName := cmd.String("from-name", "", "From display name (defaults to site ID)")
	cmd.Parse(os.Args[2:])

	if *siteID == "" || *host == "" || *username == "" || *password == "" || *recipient == "" {
		log.Println("Flags -site, -host, -username, -password and -recipient are required.")
		cmd.Usage()
		return
	}

	creds := models.SMTPCredentials{
		SiteID:         *siteID,
		Host:           *host,
		Port:           *port,
		Username:       *username,
		Password:       *password,
		Secure:         models.SecureMode(*secure),
		RecipientEmail: *recipient,
		FromEmail:      *fromEmail,
		FromName:       *fromName,
	}
	if err := store.UpsertCredentials(creds); err != nil {
		log.Fatalf("Failed to add SMTP credentials: %v", err)
	}
	fmt.Printf("SMTP credentials stored for site %q.\n", *siteID)
}

func handleList(store *db.Store) {
	tenants, err := store.Tenants()
	if err != nil {
		log.Fatalf("Failed to list sites: %v", err)
	}
	if len(tenants) == 0 {
		fmt.Println("No sites registered.")
		return
	}

	creds, err := store.Credentials()
	if err != nil {
		log.Fatalf("Failed to list credentials: %v", err)
	}
	configured := make(map[string]bool, len(creds))
	for _, c := range creds {
		configured[c.SiteID] = true
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SITE ID\tALLOWED ORIGIN\tSMTP")
	fmt.Fprintln(w, "-------\t--------------\t----")
	for _, t := range tenants {
		smtp := "missing"
		if configured[t.SiteID] {
			smtp = "configured"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.SiteID, t.AllowedOrigin, smtp)
	}
	w.Flush()
}

func handleDelete(store *db.Store) {
	cmd := flag.NewFlagSet("delete", flag.ExitOnError)
	siteID := cmd.String("site", "", "Site ID to delete")
	cmd.Parse(os.Args[2:])

	if *siteID == "" {
		log.Println("The -site flag is required.")
		cmd.Usage()
		return
	}

	rowsAffected, err := store.DeleteTenant(*siteID)
	if err != nil {
		log.Fatalf("Failed to delete site: %v", err)
	}
	if rowsAffected == 0 {
		fmt.Printf("No site %q found.\n", *siteID)
		return
	}
	fmt.Printf("Site %q deleted along with its credentials.\n", *siteID)
}

func printUsage() {
	fmt.Println("Admin tool for the form-relay tenant registry.")
	fmt.Println("\nUsage:")
	fmt.Println("  go run ./cmd/admin <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  init          Initialize the database and create the registry tables.")
	fmt.Println("  add-site      Register a site and its allowed origin.")
	fmt.Println("  add-smtp      Store SMTP credentials for a registered site.")
	fmt.Println("  list          Show all registered sites.")
	fmt.Println("  delete        Remove a site and its credentials.")
	fmt.Println("\nFor help on a command, call it without arguments, e.g.:")
	fmt.Println("  go run ./cmd/admin add-smtp")
}
