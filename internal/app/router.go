package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ticketdesk/backoffice/internal/audit"
	"github.com/ticketdesk/backoffice/internal/auth"
	"github.com/ticketdesk/backoffice/internal/categories"
	"github.com/ticketdesk/backoffice/internal/events"
	"github.com/ticketdesk/backoffice/internal/observability"
	"github.com/ticketdesk/backoffice/internal/platform/httpx"
	"github.com/ticketdesk/backoffice/internal/rbac"
	"github.com/ticketdesk/backoffice/internal/roles"
	"github.com/ticketdesk/backoffice/internal/sales"
	"github.com/ticketdesk/backoffice/internal/shared"
	"github.com/ticketdesk/backoffice/internal/users"
	"github.com/ticketdesk/backoffice/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics

	AuthHandler        *auth.Handler
	EventsHandler      *events.Handler
	CategoriesHandler  *categories.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	PermissionsHandler *rbac.PermissionsHandler
	SalesHandler       *sales.Handler
	AuditHandler       *audit.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with back office defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, httpx.ErrorBody{Code: httpx.CodeNotFound, Message: "Route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, httpx.ErrorBody{Code: httpx.CodeBadRequest, Message: "Method not allowed"})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.RBACMiddleware.Authenticate)
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		r.Route("/admin", func(r chi.Router) {
			if params.AuthHandler != nil {
				params.AuthHandler.MountAdminRoutes(r)
			}
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r)
			}
			if params.PermissionsHandler != nil {
				params.PermissionsHandler.MountRoutes(r)
			}
			if params.SalesHandler != nil {
				params.SalesHandler.MountRoutes(r)
			}
			if params.EventsHandler != nil {
				r.Route("/events", params.EventsHandler.MountRoutes)
			}
			if params.CategoriesHandler != nil {
				r.Route("/categories", params.CategoriesHandler.MountRoutes)
			}
			if params.RolesHandler != nil {
				r.Route("/roles", params.RolesHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				r.Route("/audit", params.AuditHandler.MountRoutes)
			}
		})
	})

	return r
}
