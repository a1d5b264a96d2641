package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/platform/httpx"
)

// PermissionsHandler manages permission listing and assignment.
type PermissionsHandler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, validate: httpx.NewValidator(), rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(authz.RoleAdmin, authz.RoleSuperAdmin))
		r.Get("/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(authz.RoleSuperAdmin))
		r.Post("/permissions", h.createPermission)
		r.Post("/assign-permission", h.assign)
		r.Delete("/assign-permission", h.revoke)
	})
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context(), authz.PrincipalFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if perms == nil {
		perms = []authz.Permission{}
	}
	httpx.OK(w, "Permissions retrieved", perms)
}

func (h *PermissionsHandler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req CreatePermissionRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), authz.PrincipalFromContext(r.Context()), req.Name, req.Description)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Created(w, "Permission created", perm)
}

func (h *PermissionsHandler) assign(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	grant, err := h.service.AssignPermission(r.Context(), authz.PrincipalFromContext(r.Context()), req.UserID, req.PermissionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Created(w, "Permission assigned", grant)
}

func (h *PermissionsHandler) revoke(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if err := httpx.Bind(r, h.validate, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.RevokePermission(r.Context(), authz.PrincipalFromContext(r.Context()), req.UserID, req.PermissionID); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Permission revoked", nil)
}

func (h *PermissionsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("permissions request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
}
