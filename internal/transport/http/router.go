// Package httptransport wires the HTTP surface: authenticated contact,
// file, and form management routes, the public form submission route, and
// the operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"twym/internal/platform/middleware"
	"twym/pkg/platform/httputil"
)

// HealthChecker reports backend reachability for the health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	Logger       *slog.Logger
	JWTValidator *middleware.JWTValidator
	Contacts     *ContactsHandler
	Files        *FilesHandler
	Forms        *FormsHandler

	// Optional backends surfaced by /healthz; nil entries are skipped.
	Postgres HealthChecker
	Redis    HealthChecker
}

// NewRouter assembles the full route tree.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", healthHandler(cfg))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public capture surface: no auth, but visitor metadata is captured for
	// the submission audit fields.
	r.Group(func(public chi.Router) {
		public.Use(middleware.ContentTypeJSON)
		public.Use(middleware.ClientMetadata)
		cfg.Forms.RegisterPublic(public)
	})

	// Authenticated API.
	r.Group(func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(cfg.JWTValidator, cfg.Logger))
		cfg.Contacts.Register(api)
		cfg.Files.Register(api)
		cfg.Forms.Register(api)
	})

	return r
}

func healthHandler(cfg RouterConfig) http.HandlerFunc {
	type backendStatus struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	check := func(ctx context.Context, hc HealthChecker) backendStatus {
		if hc == nil {
			return backendStatus{Status: "disabled"}
		}
		if err := hc.Health(ctx); err != nil {
			return backendStatus{Status: "down", Error: err.Error()}
		}
		return backendStatus{Status: "up"}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		postgres := check(ctx, cfg.Postgres)
		redis := check(ctx, cfg.Redis)

		status := http.StatusOK
		if postgres.Status == "down" || redis.Status == "down" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, map[string]any{
			"postgres": postgres,
			"redis":    redis,
		})
	}
}
