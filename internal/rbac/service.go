package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/shared"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = fmt.Errorf("rbac: %w", shared.ErrNotFound)

// ErrPermissionNotFound indicates the permission id is unknown.
var ErrPermissionNotFound = fmt.Errorf("rbac: permission %w", shared.ErrNotFound)

// Service orchestrates RBAC operations.
type Service struct {
	store    Store
	engine   *authz.Engine
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs a Service. notifier may be nil.
func NewService(store Store, engine *authz.Engine, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, engine: engine, notifier: notifier, logger: logger}
}

// ResolvePrincipal loads the role and grants of an active user.
func (s *Service) ResolvePrincipal(ctx context.Context, userID int64) (authz.Principal, error) {
	return s.store.LoadPrincipal(ctx, userID, false)
}

// ListPermissions returns all permissions ordered by name.
func (s *Service) ListPermissions(ctx context.Context, actor authz.Principal) ([]authz.Permission, error) {
	if err := authz.RequireRole(actor, authz.RoleAdmin, authz.RoleSuperAdmin); err != nil {
		return nil, err
	}
	return s.store.ListPermissions(ctx)
}

// CreatePermission registers a new capability name.
func (s *Service) CreatePermission(ctx context.Context, actor authz.Principal, name, description string) (authz.Permission, error) {
	if err := authz.RequireRole(actor, authz.RoleSuperAdmin); err != nil {
		return authz.Permission{}, err
	}
	name = authz.NormalizePermission(name)
	if name == "" {
		return authz.Permission{}, errors.New("rbac: permission name required")
	}
	var perm authz.Permission
	err := s.store.WithTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		perm, err = store.InsertPermission(ctx, name, strings.TrimSpace(description), s.engine.Now())
		if err != nil {
			return err
		}
		return store.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "permission.create",
			Entity:   "permission",
			EntityID: strconv.FormatInt(perm.ID, 10),
			Meta:     map[string]any{"name": perm.Name},
			At:       perm.CreatedAt,
		})
	})
	if err != nil {
		return authz.Permission{}, err
	}
	return perm, nil
}

// AssignPermission grants permissionID to userID. The target row stays locked
// while the grant is validated and written.
func (s *Service) AssignPermission(ctx context.Context, actor authz.Principal, userID, permissionID int64) (authz.Grant, error) {
	var (
		grant  authz.Grant
		target authz.Principal
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		target, err = store.LoadPrincipal(ctx, userID, true)
		if err != nil {
			return err
		}
		perm, err := store.GetPermission(ctx, permissionID)
		if err != nil {
			return err
		}
		grant, err = s.engine.GrantPermission(actor, target, perm)
		if err != nil {
			return err
		}
		if err := store.InsertGrant(ctx, grant); err != nil {
			return err
		}
		return store.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "permission.grant",
			Entity:   "user",
			EntityID: strconv.FormatInt(userID, 10),
			Meta:     map[string]any{"permission_id": perm.ID, "permission": perm.Name},
			At:       grant.GrantedAt,
		})
	})
	if err != nil {
		return authz.Grant{}, err
	}
	s.notify(ctx, target.Email, "New permission granted",
		fmt.Sprintf("Hello %s,\n\nYou have been granted the %s permission in the back office.\n", target.Name, grant.PermissionName))
	return grant, nil
}

// RevokePermission removes permissionID from userID.
func (s *Service) RevokePermission(ctx context.Context, actor authz.Principal, userID, permissionID int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, store Store) error {
		target, err := store.LoadPrincipal(ctx, userID, true)
		if err != nil {
			return err
		}
		perm, err := store.GetPermission(ctx, permissionID)
		if err != nil {
			return err
		}
		if err := s.engine.RevokePermission(actor, target, perm); err != nil {
			return err
		}
		removed, err := store.DeleteGrant(ctx, userID, permissionID)
		if err != nil {
			return err
		}
		if !removed {
			return authz.ErrGrantNotFound
		}
		return store.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "permission.revoke",
			Entity:   "user",
			EntityID: strconv.FormatInt(userID, 10),
			Meta:     map[string]any{"permission_id": perm.ID, "permission": perm.Name},
			At:       s.engine.Now(),
		})
	})
}

func (s *Service) notify(ctx context.Context, to, subject, body string) {
	if s.notifier == nil || to == "" {
		return
	}
	if err := s.notifier.Notify(ctx, to, subject, body); err != nil {
		s.logger.Warn("enqueue notification", slog.String("subject", subject), slog.Any("error", err))
	}
}
