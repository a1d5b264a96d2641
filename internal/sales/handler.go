package sales

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/events"
	"github.com/ticketdesk/backoffice/internal/platform/httpx"
	"github.com/ticketdesk/backoffice/internal/rbac"
	"github.com/ticketdesk/backoffice/internal/shared"
)

// Handler exposes analytics and dashboard endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(shared.PermViewAnalytics))
		r.Get("/sales", h.report)
		r.Get("/sales/export.csv", h.export)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(authz.RoleAdmin, authz.RoleSuperAdmin))
		r.Get("/dashboard", h.dashboard)
	})
}

func parseFilter(r *http.Request) (Filter, error) {
	var (
		f   Filter
		err error
	)
	if f.EventID, err = httpx.OptionalInt64(r, "eventId"); err != nil {
		return f, err
	}
	if f.CategoryID, err = httpx.OptionalInt64(r, "categoryId"); err != nil {
		return f, err
	}
	if f.DateFrom, err = optionalDate(r, "dateFrom"); err != nil {
		return f, err
	}
	if f.DateTo, err = optionalDate(r, "dateTo"); err != nil {
		return f, err
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return f, httpx.Invalid("dateTo", "dateTo must not be before dateFrom")
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := events.ParseStatus(raw)
		if err != nil {
			return f, httpx.Invalid("status", "unknown status")
		}
		f.Status = string(status)
	}
	return f, nil
}

func optionalDate(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, httpx.Invalid(name, name+" must be a date (YYYY-MM-DD)")
	}
	return &t, nil
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	report, err := h.service.Report(r.Context(), authz.PrincipalFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Sales analytics retrieved", report)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), authz.PrincipalFromContext(r.Context()), filter, &buf); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sales.csv"`)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.Dashboard(r.Context(), authz.PrincipalFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Dashboard retrieved", dash)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("sales request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
}
