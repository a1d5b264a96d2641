package events

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/platform/httpx"
	"github.com/ticketdesk/backoffice/internal/rbac"
	"github.com/ticketdesk/backoffice/internal/shared"
)

// Handler exposes event and ticket type endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator(), rbac: rbac}
}

// MountRoutes registers event routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(authz.RoleAdmin, authz.RoleSuperAdmin))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/history", h.history)
		r.Get("/{id}/tickets", h.listTickets)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermCreateEvent))
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermEditEvent))
		r.Put("/{id}", h.update)
		r.Post("/{id}/tickets", h.createTicket)
		r.Put("/{id}/tickets/{ticketID}", h.updateTicket)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermDeleteEvent))
		r.Delete("/{id}", h.delete)
		r.Post("/bulk-delete", h.bulkDelete)
		r.Delete("/{id}/tickets/{ticketID}", h.deleteTicket)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermManageEventStatus))
		r.Patch("/{id}/status", h.changeStatus)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, limit, err := httpx.PageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := ListFilter{
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
		Sort:   q.Get("sortBy"),
		Order:  q.Get("sortOrder"),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			h.fail(w, r, httpx.Invalid("status", "unknown status"))
			return
		}
		filter.Status = &status
	}
	if filter.CategoryID, err = httpx.OptionalInt64(r, "categoryId"); err != nil {
		h.fail(w, r, err)
		return
	}
	events, total, err := h.service.List(r.Context(), authz.PrincipalFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if events == nil {
		events = []Event{}
	}
	httpx.Paginated(w, "Events retrieved", events, shared.NewPagination(page, limit, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ev, err := h.service.Get(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Event retrieved", ev)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(shared.IdempotencyHeader))
	ev, err := h.service.Create(r.Context(), authz.PrincipalFromContext(r.Context()), req, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Created(w, "Event created", ev)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateEventRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ev, err := h.service.Update(r.Context(), authz.PrincipalFromContext(r.Context()), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Event updated", ev)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), authz.PrincipalFromContext(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Event deleted", nil)
}

func (h *Handler) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	deleted, err := h.service.BulkDelete(r.Context(), authz.PrincipalFromContext(r.Context()), req.EventIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Events deleted", map[string]any{"deletedCount": deleted})
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req ChangeStatusRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		h.fail(w, r, httpx.Invalid("status", "unknown status"))
		return
	}
	ev, err := h.service.ChangeStatus(r.Context(), authz.PrincipalFromContext(r.Context()), id, status, strings.TrimSpace(req.Reason))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Event status updated", ev)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	changes, err := h.service.History(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if changes == nil {
		changes = []StatusChange{}
	}
	httpx.OK(w, "Status history retrieved", changes)
}

func (h *Handler) listTickets(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	tickets, err := h.service.ListTicketTypes(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []TicketType{}
	}
	httpx.OK(w, "Ticket types retrieved", tickets)
}

func (h *Handler) createTicket(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CreateTicketTypeRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(shared.IdempotencyHeader))
	ticket, err := h.service.CreateTicketType(r.Context(), authz.PrincipalFromContext(r.Context()), id, req, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Created(w, "Ticket type created", ticket)
}

func (h *Handler) updateTicket(w http.ResponseWriter, r *http.Request) {
	eventID, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ticketID, err := httpx.IDParam(r, "ticketID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateTicketTypeRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ticket, err := h.service.UpdateTicketType(r.Context(), authz.PrincipalFromContext(r.Context()), eventID, ticketID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Ticket type updated", ticket)
}

func (h *Handler) deleteTicket(w http.ResponseWriter, r *http.Request) {
	eventID, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ticketID, err := httpx.IDParam(r, "ticketID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DeleteTicketType(r.Context(), authz.PrincipalFromContext(r.Context()), eventID, ticketID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Ticket type deleted", nil)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrInvalidTransition) {
		httpx.RespondCode(w, http.StatusBadRequest, httpx.CodeInvalidTransition, err)
		return
	}
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("events request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
}
