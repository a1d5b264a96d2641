package categories

import (
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

// Handler exposes category and subcategory endpoints.
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

// MountRoutes registers category routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(authz.RoleAdmin, authz.RoleSuperAdmin))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/subcategories", h.listSubs)
		r.Get("/{id}/subcategories/{subID}", h.getSub)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(shared.PermManageCategories))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/subcategories", h.createSub)
		r.Put("/{id}/subcategories/{subID}", h.updateSub)
		r.Delete("/{id}/subcategories/{subID}", h.deleteSub)
	})
}

func (h *Handler) filter(r *http.Request) (ListFilter, error) {
	page, limit, err := httpx.PageParams(r)
	if err != nil {
		return ListFilter{}, err
	}
	active, err := httpx.OptionalBool(r, "isActive")
	if err != nil {
		return ListFilter{}, err
	}
	return ListFilter{Page: page, Limit: limit, Search: strings.TrimSpace(r.URL.Query().Get("search")), IsActive: active}, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := h.filter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, total, err := h.service.List(r.Context(), authz.PrincipalFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []Category{}
	}
	httpx.Paginated(w, "Categories retrieved", list, shared.NewPagination(filter.Page, filter.Limit, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.service.Get(r.Context(), authz.PrincipalFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Category retrieved", c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.service.Create(r.Context(), authz.PrincipalFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Created(w, "Category created", c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateCategoryRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	c, err := h.service.Update(r.Context(), authz.PrincipalFromContext(r.Context()), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Category updated", c)
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
	httpx.OK(w, "Category deleted", nil)
}

func (h *Handler) listSubs(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter, err := h.filter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, total, err := h.service.ListSubCategories(r.Context(), authz.PrincipalFromContext(r.Context()), id, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []SubCategory{}
	}
	httpx.Paginated(w, "Subcategories retrieved", list, shared.NewPagination(filter.Page, filter.Limit, total))
}

func (h *Handler) subIDs(r *http.Request) (int64, int64, error) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		return 0, 0, err
	}
	subID, err := httpx.IDParam(r, "subID")
	if err != nil {
		return 0, 0, err
	}
	return id, subID, nil
}

func (h *Handler) getSub(w http.ResponseWriter, r *http.Request) {
	id, subID, err := h.subIDs(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := h.service.GetSubCategory(r.Context(), authz.PrincipalFromContext(r.Context()), id, subID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Subcategory retrieved", sub)
}

func (h *Handler) createSub(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CreateSubCategoryRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := h.service.CreateSubCategory(r.Context(), authz.PrincipalFromContext(r.Context()), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Created(w, "Subcategory created", sub)
}

func (h *Handler) updateSub(w http.ResponseWriter, r *http.Request) {
	id, subID, err := h.subIDs(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateSubCategoryRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sub, err := h.service.UpdateSubCategory(r.Context(), authz.PrincipalFromContext(r.Context()), id, subID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Subcategory updated", sub)
}

func (h *Handler) deleteSub(w http.ResponseWriter, r *http.Request) {
	id, subID, err := h.subIDs(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DeleteSubCategory(r.Context(), authz.PrincipalFromContext(r.Context()), id, subID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Subcategory deleted", nil)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("categories request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
}
