// Package api exposes the form-relay HTTP surface: the submission endpoint
// and the origin gating in front of it.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"form-relay/internal/mailer"
	"form-relay/internal/registry"
	"form-relay/internal/templates"
)

type Handler struct {
	registry  *registry.Registry
	templates *templates.Store
	sender    mailer.Sender
}

func NewHandler(reg *registry.Registry, store *templates.Store, sender mailer.Sender) *Handler {
	return &Handler{registry: reg, templates: store, sender: sender}
}

// response is the JSON envelope every terminal state maps to.
type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SubmitForm handles one contact-form submission end to end: validate the
// site, resolve its credentials, render the body, deliver, respond. Each
// failure exits with exactly one status code and JSON body; nothing here ever
// takes the process down.
func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	sub, err := parseSubmission(r)
	if err != nil {
		log.Printf("WARN: Rejected form: unreadable body: %v", err)
		writeJSON(w, http.StatusBadRequest, response{Success: false, Error: "Invalid form body"})
		return
	}

	if _, err := h.registry.Lookup(sub.SiteID); err != nil {
		log.Printf("WARN: Rejected form: unknown site_id %q", sub.SiteID)
		writeJSON(w, http.StatusBadRequest, response{Success: false, Error: "Invalid site ID"})
		return
	}

	creds, err := h.registry.Credentials(sub.SiteID)
	if err != nil {
		log.Printf("ERROR: No SMTP credentials for site_id %q", sub.SiteID)
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Error: "Missing SMTP credentials"})
		return
	}

	htmlBody, err := h.templates.Render(sub)
	if err != nil {
		log.Printf("ERROR: Template rendering failed for site_id %q: %v", sub.SiteID, err)
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Error: err.Error()})
		return
	}

	email := mailer.Compose(sub.SiteID, creds, htmlBody)
	if err := h.sender.Send(r.Context(), creds, email); err != nil {
		// The cause never contains the password; it is safe to log and echo.
		log.Printf("ERROR: Email failed for site_id %q: %v", sub.SiteID, err)
		var dErr *mailer.DeliveryError
		if !errors.As(err, &dErr) {
			err = &mailer.DeliveryError{Cause: err}
		}
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Error: err.Error()})
		return
	}

	log.Printf("Email sent for site_id: %s", sub.SiteID)
	writeJSON(w, http.StatusOK, response{Success: true})
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("ERROR: Failed to write response: %v", err)
	}
}
