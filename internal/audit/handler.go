package audit

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/platform/httpx"
	"github.com/ticketdesk/backoffice/internal/rbac"
)

// Handler exposes the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(authz.RoleSuperAdmin))
		r.Get("/", h.list)
		r.Get("/export.csv", h.export)
	})
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	page, limit, err := httpx.PageParams(r)
	if err != nil {
		return Filter{}, err
	}
	f := Filter{Page: page, Limit: limit, Entity: strings.TrimSpace(q.Get("entity")), Action: strings.TrimSpace(q.Get("action"))}
	if f.ActorID, err = httpx.OptionalInt64(r, "actorId"); err != nil {
		return Filter{}, err
	}
	for name, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filter{}, httpx.Invalid(name, name+" must be an RFC 3339 timestamp")
		}
		*dst = t
	}
	return f, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.service.List(r.Context(), authz.PrincipalFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Audit log retrieved", result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.service.Export(r.Context(), authz.PrincipalFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, entries); err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("audit request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
}
