package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/platform/httpx"
	"github.com/ticketdesk/backoffice/internal/shared"
)

// PrincipalResolver loads the principal behind a user id.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, userID int64) (authz.Principal, error)
}

// TokenVerifier extracts the user id from a bearer token.
type TokenVerifier interface {
	SubjectID(raw string) (int64, error)
}

// DecisionRecorder counts authorization outcomes.
type DecisionRecorder interface {
	ObserveAuthz(check, decision string)
}

// Outcomes reported to DecisionRecorder.
const (
	DecisionAllow           = "allow"
	DecisionDeny            = "deny"
	DecisionUnauthenticated = "unauthenticated"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Principals PrincipalResolver
	Tokens     TokenVerifier
	Metrics    DecisionRecorder
	Logger     *slog.Logger
}

// Authenticate resolves the caller from a bearer token or the session and
// stores the principal in the request context. Anonymous requests pass through.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok, err := m.currentUserID(r)
		if err != nil {
			m.deny(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "Invalid or expired token")
			return
		}
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := m.Principals.ResolvePrincipal(r.Context(), userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			m.logError("rbac resolve principal", err)
			m.deny(w, http.StatusInternalServerError, httpx.CodeInternal, "Internal server error")
			return
		}
		next.ServeHTTP(w, r.WithContext(authz.ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireRole ensures the current principal holds one of roles.
func (m Middleware) RequireRole(roles ...authz.Role) func(http.Handler) http.Handler {
	return m.guard("role", func(p authz.Principal) bool {
		return authz.HasRole(p, roles...)
	})
}

// RequirePermission ensures the current principal holds the named permission.
func (m Middleware) RequirePermission(name string) func(http.Handler) http.Handler {
	return m.RequireAll(name)
}

// RequireAny ensures the current principal has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.guard("permission", func(p authz.Principal) bool {
		if len(normalized) == 0 {
			return true
		}
		for _, perm := range normalized {
			if authz.HasPermission(p, perm) {
				return true
			}
		}
		return false
	})
}

// RequireAll ensures the current principal has all required permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.guard("permission", func(p authz.Principal) bool {
		for _, perm := range normalized {
			if !authz.HasPermission(p, perm) {
				return false
			}
		}
		return true
	})
}

func (m Middleware) guard(check string, allowed func(authz.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := authz.PrincipalFromContext(r.Context())
			if !p.Authenticated() {
				m.observe(check, DecisionUnauthenticated)
				m.deny(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "Authentication required")
				return
			}
			if !allowed(p) {
				m.observe(check, DecisionDeny)
				m.deny(w, http.StatusForbidden, httpx.CodeForbidden, "Insufficient permissions")
				return
			}
			m.observe(check, DecisionAllow)
			next.ServeHTTP(w, r)
		})
	}
}

// currentUserID prefers the bearer token. A malformed token is an error even
// when a session is present.
func (m Middleware) currentUserID(r *http.Request) (int64, bool, error) {
	if raw, ok := bearerToken(r); ok {
		if m.Tokens == nil {
			return 0, false, errors.New("rbac: bearer tokens not supported")
		}
		id, err := m.Tokens.SubjectID(raw)
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false, nil
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		m.logError("rbac parse user id", fmt.Errorf("session user %q: %w", raw, err))
		return 0, false, nil
	}
	return id, true, nil
}

// BearerToken reports whether r carries an Authorization bearer token.
func BearerToken(r *http.Request) bool {
	_, ok := bearerToken(r)
	return ok
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func (m Middleware) deny(w http.ResponseWriter, status int, code, message string) {
	httpx.Fail(w, status, httpx.ErrorBody{Code: code, Message: message})
}

func (m Middleware) observe(check, decision string) {
	if m.Metrics != nil {
		m.Metrics.ObserveAuthz(check, decision)
	}
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = authz.NormalizePermission(p)
		if p == "" {
			continue
		}
		if _, ok := unique[p]; ok {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
