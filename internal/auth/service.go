package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/platform/httpx"
	"github.com/ticketdesk/backoffice/internal/shared"
)

// BcryptCost is the work factor for stored password hashes.
const BcryptCost = 12

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	cost int
	now  func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: BcryptCost, now: func() time.Time { return time.Now().UTC() }}
}

// Register creates an ADMIN account without grants. A super admin grants
// capabilities afterwards.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	return s.create(ctx, req, authz.RoleAdmin, "user.register")
}

// BootstrapSuperAdmin creates a SUPER_ADMIN account. It is reachable only from
// the operator CLI.
func (s *Service) BootstrapSuperAdmin(ctx context.Context, req RegisterRequest) (*User, error) {
	if err := httpx.Validate(httpx.NewValidator(), &req); err != nil {
		return nil, err
	}
	return s.create(ctx, req, authz.RoleSuperAdmin, "user.bootstrap")
}

func (s *Service) create(ctx context.Context, req RegisterRequest, role authz.Role, action string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	now := s.now()
	user := User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.CreateUser(ctx, user)
		if err != nil {
			return err
		}
		user.ID = id
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  id,
			Action:   action,
			Entity:   "user",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"email": user.Email, "role": string(role)},
			At:       now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate validates email/password credentials. Only active admin tier
// accounts may sign in.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.Role.AdminTier() {
		return nil, fmt.Errorf("%w: back office access requires an admin account", authz.ErrForbidden)
	}
	now := s.now()
	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	return user, nil
}

// ChangePassword replaces the password of actor after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, actor authz.Principal, current, next string) error {
	if !actor.Authenticated() {
		return authz.ErrUnauthorized
	}
	user, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return httpx.Invalid("currentPassword", "current password is incorrect")
	}
	if current == next {
		return httpx.Invalid("newPassword", "new password must differ from the current one")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	now := s.now()
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdatePassword(ctx, actor.ID, string(hash), now); err != nil {
			return err
		}
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "user.change_password",
			Entity:   "user",
			EntityID: strconv.FormatInt(actor.ID, 10),
			At:       now,
		})
	})
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
