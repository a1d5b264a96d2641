package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/platform/httpx"
	"github.com/ticketdesk/backoffice/internal/rbac"
	"github.com/ticketdesk/backoffice/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	tokens         *TokenManager
	principals     rbac.PrincipalResolver
	rbac           rbac.Middleware
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, tokens *TokenManager, principals rbac.PrincipalResolver, mw rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		tokens:         tokens,
		principals:     principals,
		rbac:           mw,
		validator:      httpx.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/csrf", h.handleCSRF)
}

// MountAdminRoutes registers account routes that need a signed in admin.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(authz.RoleAdmin, authz.RoleSuperAdmin))
		r.Post("/change-password", h.handleChangePassword)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.Created(w, "Registration successful. A super admin must grant permissions before you can manage content.", user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Fail(w, http.StatusUnauthorized, httpx.ErrorBody{Code: httpx.CodeUnauthorized, Message: "Invalid email or password"})
			return
		}
		h.fail(w, r, err)
		return
	}

	principal, err := h.principals.ResolvePrincipal(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	token, expiresAt, err := h.tokens.Issue(principal)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var csrfToken string
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Renew(sess)
		sess.SetUser(strconv.FormatInt(user.ID, 10))
		if csrfToken, err = h.csrfManager.Rotate(sess); err != nil {
			h.fail(w, r, err)
			return
		}
		sessionExpiry := time.Now().Add(h.sessionManager.TTL())
		if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, sessionExpiry, r.RemoteAddr, r.UserAgent()); err != nil {
			h.logger.Warn("register session", slog.Any("error", err))
		}
	} else {
		h.logger.Error("session missing during login")
	}

	h.logger.Info("user signed in", slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))
	httpx.OK(w, "Login successful", LoginResponse{
		User:        *user,
		Permissions: principal.Permissions.Names(),
		Token:       token,
		ExpiresAt:   expiresAt,
		CSRFToken:   csrfToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	httpx.OK(w, "Logged out", nil)
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrfManager.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "CSRF token issued", map[string]string{"csrfToken": token})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), authz.PrincipalFromContext(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.OK(w, "Password changed", nil)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError {
		h.logger.Error("auth request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
}
