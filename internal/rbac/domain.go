package rbac

import (
	"context"
	"time"

	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/shared"
)

// Store persists principals, permissions and grants.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error

	// LoadPrincipal returns the active user with its granted permissions.
	// forUpdate locks the user row until the transaction ends.
	LoadPrincipal(ctx context.Context, userID int64, forUpdate bool) (authz.Principal, error)
	ListPermissions(ctx context.Context) ([]authz.Permission, error)
	GetPermission(ctx context.Context, id int64) (authz.Permission, error)
	InsertPermission(ctx context.Context, name, description string, at time.Time) (authz.Permission, error)
	InsertGrant(ctx context.Context, grant authz.Grant) error
	DeleteGrant(ctx context.Context, userID, permissionID int64) (bool, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Notifier delivers account notifications out of band.
type Notifier interface {
	Notify(ctx context.Context, to, subject, body string) error
}

// CreatePermissionRequest is the payload for POST /permissions.
type CreatePermissionRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=50"`
	Description string `json:"description" validate:"max=255"`
}

// AssignmentRequest is the payload for the assign-permission endpoints.
type AssignmentRequest struct {
	UserID       int64 `json:"userId" validate:"required,gt=0"`
	PermissionID int64 `json:"permissionId" validate:"required,gt=0"`
}
