package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	chitrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/go-chi/chi.v5"

	"form-relay/internal/registry"
)

// NewRouter wires the middleware stack and routes. Cross-origin admission is
// enforced in two layers: the CORS middleware answers preflights and emits
// headers for allowed origins, and originGuard hard-rejects any request whose
// Origin is not some tenant's allowed origin — before handler logic runs.
func NewRouter(h *Handler, reg *registry.Registry) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(chitrace.Middleware(chitrace.WithServiceName("form-relay")))

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return reg.OriginAllowed(origin)
		},
		AllowedMethods: []string{"POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(originGuard(reg))

	r.Get("/health", h.Health)
	r.Post("/submit-form", h.SubmitForm)

	return r
}

// originGuard rejects requests that carry a disallowed Origin header.
// Requests without an Origin header (curl, server-to-server) pass through;
// the whitelist exists to gate browsers embedding the form.
func originGuard(reg *registry.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && !reg.OriginAllowed(origin) {
				writeJSON(w, http.StatusForbidden, response{Success: false, Error: "Origin not allowed"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
