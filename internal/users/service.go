package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/shared"
)

// Notifier delivers account notifications out of band.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	engine   *authz.Engine
	notifier Notifier
	logger   *slog.Logger
}

// NewService builds Service instance. notifier may be nil.
func NewService(repo RepositoryPort, engine *authz.Engine, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, engine: engine, notifier: notifier, logger: logger}
}

// ListUsers returns admin tier accounts visible to actor. Admins only see
// the accounts they promoted.
func (s *Service) ListUsers(ctx context.Context, actor authz.Principal, filter ListFilter) ([]User, int, error) {
	if err := authz.Require(actor, shared.PermViewUsers); err != nil {
		return nil, 0, err
	}
	filter.Roles = []authz.Role{authz.RoleAdmin, authz.RoleSuperAdmin}
	if actor.Role != authz.RoleSuperAdmin {
		filter.PromotedBy = &actor.ID
	}
	return s.repo.List(ctx, filter)
}

// ListAdmins returns every ADMIN account with its permissions.
func (s *Service) ListAdmins(ctx context.Context, actor authz.Principal) ([]User, error) {
	if err := authz.RequireRole(actor, authz.RoleSuperAdmin); err != nil {
		return nil, err
	}
	admins, _, err := s.repo.List(ctx, ListFilter{Roles: []authz.Role{authz.RoleAdmin}})
	return admins, err
}

// Promote raises userID to ADMIN. Existing grants are kept.
func (s *Service) Promote(ctx context.Context, actor authz.Principal, userID int64) (*User, error) {
	var promoted *User
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		target, err := repo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		next, err := s.engine.Promote(actor, target.Principal())
		if err != nil {
			return err
		}
		now := s.engine.Now()
		if err := repo.Promote(ctx, userID, actor.ID, now); err != nil {
			return err
		}
		previous := target.Role
		target.Role = next.Role
		target.PromotedAt = &now
		target.PromotedBy = &actor.ID
		target.UpdatedAt = now
		promoted = target
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "user.promote",
			Entity:   "user",
			EntityID: strconv.FormatInt(userID, 10),
			Meta:     map[string]any{"from": string(previous), "to": string(next.Role)},
			At:       now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, promoted.Email, "You are now an admin",
		fmt.Sprintf("Hello %s,\n\nYour account was promoted to admin. A super admin will grant the permissions you need.\n", promoted.Name))
	return promoted, nil
}

// Delete removes userID and its grants.
func (s *Service) Delete(ctx context.Context, actor authz.Principal, userID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		target, err := repo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if err := authz.CheckManagePrincipal(actor, target.Principal(), authz.ActionDelete); err != nil {
			return err
		}
		if err := repo.Delete(ctx, userID); err != nil {
			return err
		}
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "user.delete",
			Entity:   "user",
			EntityID: strconv.FormatInt(userID, 10),
			Meta:     map[string]any{"email": target.Email, "role": string(target.Role)},
			At:       s.engine.Now(),
		})
	})
}

// Me returns the account of actor with permission details.
func (s *Service) Me(ctx context.Context, actor authz.Principal) (*User, error) {
	if !actor.Authenticated() {
		return nil, authz.ErrUnauthorized
	}
	return s.repo.Get(ctx, actor.ID)
}

func (s *Service) notify(ctx context.Context, to, subject, body string) {
	if s.notifier == nil || to == "" {
		return
	}
	if err := s.notifier.Notify(ctx, to, subject, body); err != nil {
		s.logger.Warn("enqueue notification", slog.String("subject", subject), slog.Any("error", err))
	}
}
