package users

import (
	"time"

	"github.com/ticketdesk/backoffice/internal/authz"
)

// User represents a user account for management.
type User struct {
	ID          int64              `json:"id"`
	Email       string             `json:"email"`
	Name        string             `json:"name"`
	Role        authz.Role         `json:"role"`
	IsActive    bool               `json:"isActive"`
	PromotedAt  *time.Time         `json:"promotedAt,omitempty"`
	PromotedBy  *int64             `json:"promotedBy,omitempty"`
	LastLoginAt *time.Time         `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	Permissions []authz.Permission `json:"permissions"`
}

// Principal projects the account onto the authorization model.
func (u User) Principal() authz.Principal {
	names := make([]string, len(u.Permissions))
	for i, p := range u.Permissions {
		names[i] = p.Name
	}
	return authz.Principal{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, Permissions: authz.NewPermissionSet(names...)}
}

// ListFilter narrows user listings.
type ListFilter struct {
	Page       int
	Limit      int
	Search     string
	Roles      []authz.Role
	PromotedBy *int64
}

// PromoteRequest is the payload for POST /promote.
type PromoteRequest struct {
	UserID int64 `json:"userId" validate:"required,gt=0"`
}
