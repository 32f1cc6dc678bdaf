// Package templates renders submissions into HTML email bodies using Liquid
// templates. A site with its own template (<site_id>.html) controls the full
// layout and receives the raw field map; everyone else gets the generic
// escaped table built by the fallback path.
package templates

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"form-relay/internal/models"
)

const defaultTemplate = "default.html"

// Store resolves and renders the per-site templates. The set of available
// template names is fixed at load time; which arm a render takes (site
// template vs fallback) is decided by an explicit existence check, never by
// catching a lookup failure.
type Store struct {
	dir    string
	engine *liquid.Engine
	names  map[string]struct{}
	cache  sync.Map // template name -> *liquid.Template
}

// Load scans dir for *.html templates and parses the default template
// eagerly. The default template is the floor the fallback path stands on, so
// its absence or breakage refuses startup; site templates are parsed on first
// use so one broken tenant template cannot take the whole relay down.
func Load(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates dir %s: %w", dir, err)
	}

	s := &Store{
		dir:    dir,
		engine: liquid.NewEngine(),
		names:  make(map[string]struct{}),
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".html" {
			continue
		}
		s.names[e.Name()] = struct{}{}
	}

	if _, ok := s.names[defaultTemplate]; !ok {
		return nil, fmt.Errorf("templates dir %s has no %s", dir, defaultTemplate)
	}
	if _, err := s.parse(defaultTemplate); err != nil {
		return nil, err
	}
	return s, nil
}

// Render produces the HTML body for one submission. If a template named
// <site_id>.html exists it receives the full field map as "data" and its own
// escaping is trusted; otherwise the default template receives the pre-built,
// escaped "form_fields" rows. Errors from an existing site template are
// returned as-is — a broken template must not silently fall back.
func (s *Store) Render(sub models.Submission) (string, error) {
	name := sub.SiteID + ".html"
	if _, ok := s.names[name]; ok {
		tpl, err := s.parse(name)
		if err != nil {
			return "", err
		}
		out, err := tpl.Render(liquid.Bindings{"data": sub.FieldMap()})
		if err != nil {
			return "", fmt.Errorf("site template %s: %w", name, err)
		}
		return string(out), nil
	}

	tpl, err := s.parse(defaultTemplate)
	if err != nil {
		return "", err
	}
	out, err := tpl.Render(liquid.Bindings{"form_fields": FallbackRows(sub.Fields)})
	if err != nil {
		return "", fmt.Errorf("default template: %w", err)
	}
	return string(out), nil
}

// HasSiteTemplate reports whether siteID has its own template registered.
func (s *Store) HasSiteTemplate(siteID string) bool {
	_, ok := s.names[siteID+".html"]
	return ok
}

func (s *Store) parse(name string) (*liquid.Template, error) {
	if cached, ok := s.cache.Load(name); ok {
		return cached.(*liquid.Template), nil
	}
	src, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}
	tpl, err := s.engine.ParseTemplate(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	s.cache.Store(name, tpl)
	return tpl, nil
}

// FallbackRows builds the table rows for the generic rendering: one row per
// field except site_id itself, in submission order, with the label humanized
// and both label and value HTML-escaped. Newlines in values become <br> so
// multi-line messages survive.
func FallbackRows(fields []models.Field) string {
	var b strings.Builder
	for _, f := range fields {
		if f.Name == "site_id" {
			continue
		}
		label := html.EscapeString(humanize(f.Name))
		value := strings.ReplaceAll(html.EscapeString(f.Value), "\n", "<br>")
		fmt.Fprintf(&b, "<tr><td><strong>%s</strong></td><td>%s</td></tr>", label, value)
	}
	return b.String()
}

// humanize turns a field key into a label: underscores become spaces, the
// first letter is upper-cased and the rest lowered ("full_name" → "Full name").
func humanize(key string) string {
	label := strings.ReplaceAll(key, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + strings.ToLower(label[1:])
}
