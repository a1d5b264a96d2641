package roles

import (
	"context"

	"github.com/ticketdesk/backoffice/internal/authz"
)

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns the catalogue in ascending privilege order.
func (s *Service) ListRoles(ctx context.Context, actor authz.Principal) ([]Role, error) {
	if err := authz.RequireRole(actor, authz.RoleAdmin, authz.RoleSuperAdmin); err != nil {
		return nil, err
	}
	counts, err := s.repo.CountMembers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Role, 0, len(authz.Roles))
	for _, role := range authz.Roles {
		out = append(out, Role{
			Name:        role,
			Description: descriptions[role],
			AdminTier:   role.AdminTier(),
			Members:     counts[role],
		})
	}
	return out, nil
}
