package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"form-relay/internal/models"
)

// maxFormBytes caps the submission body. Contact forms are small; anything
// bigger is abuse.
const maxFormBytes = 1 << 20

// parseSubmission decodes a form-encoded body into a Submission, keeping the
// fields in wire order. http.Request.ParseForm would hand back an unordered
// url.Values, and the fallback rendering must reproduce submission order, so
// the pairs are walked sequentially instead.
func parseSubmission(r *http.Request) (models.Submission, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	if err != nil {
		return models.Submission{}, fmt.Errorf("failed to read request body: %w", err)
	}

	var sub models.Submission
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		rawName, rawValue, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(rawName)
		if err != nil {
			return models.Submission{}, fmt.Errorf("bad field name %q: %w", rawName, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return models.Submission{}, fmt.Errorf("bad value for field %q: %w", name, err)
		}
		if name == "site_id" && sub.SiteID == "" {
			sub.SiteID = value
		}
		sub.Fields = append(sub.Fields, models.Field{Name: name, Value: value})
	}
	return sub, nil
}
