package authz

import (
	"fmt"
	"time"
)

// Engine evaluates authorization rules. It holds no state besides the clock.
type Engine struct {
	now func() time.Time
}

// NewEngine constructs an Engine. A nil clock defaults to UTC wall time.
func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{now: now}
}

// HasPermission reports whether p may exercise the named capability.
// Every SUPER_ADMIN passes for every name, including the id-less System
// principal. Principals outside the admin tier never pass, whatever their
// grant set contains. Require additionally demands an authenticated caller.
func HasPermission(p Principal, name string) bool {
	if p.Role == RoleSuperAdmin {
		return true
	}
	if !p.Authenticated() || !p.Role.AdminTier() {
		return false
	}
	return p.Permissions.Has(name)
}

// HasRole reports whether p holds one of roles.
func HasRole(p Principal, roles ...Role) bool {
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	return false
}

// CanActOn reports whether p may act on a resource owned by ownerID.
// Admins are scoped to what they created.
func CanActOn(p Principal, ownerID int64) bool {
	if !p.Authenticated() {
		return false
	}
	if p.Role == RoleSuperAdmin {
		return true
	}
	return p.ID == ownerID
}

// Require returns ErrUnauthorized or ErrForbidden when p lacks the capability.
func Require(p Principal, name string) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}
	if !HasPermission(p, name) {
		return fmt.Errorf("%w: missing %s", ErrForbidden, NormalizePermission(name))
	}
	return nil
}

// RequireRole returns ErrUnauthorized or ErrForbidden when p holds none of roles.
func RequireRole(p Principal, roles ...Role) error {
	if !p.Authenticated() {
		return ErrUnauthorized
	}
	if !HasRole(p, roles...) {
		return ErrForbidden
	}
	return nil
}

// CanManagePrincipal reports whether actor may perform action on target.
func CanManagePrincipal(actor, target Principal, action ManageAction) bool {
	return CheckManagePrincipal(actor, target, action) == nil
}

// CheckManagePrincipal explains why actor may not perform action on target.
func CheckManagePrincipal(actor, target Principal, action ManageAction) error {
	if !actor.Authenticated() {
		return ErrUnauthorized
	}
	switch action {
	case ActionDelete:
		if actor.ID == target.ID {
			return ErrSelfTargetNotAllowed
		}
		if target.Role == RoleSuperAdmin {
			return ErrCannotModifySuperAdmin
		}
		if actor.Role != RoleSuperAdmin {
			return ErrForbidden
		}
		return nil
	case ActionPromote:
		if actor.Role != RoleSuperAdmin {
			return ErrForbidden
		}
		if target.Role == RoleSuperAdmin {
			return ErrCannotModifySuperAdmin
		}
		if target.Role == RoleAdmin {
			return ErrAlreadyPromoted
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %q", ErrForbidden, action)
	}
}

// Promote returns target raised to ADMIN. Existing grants are left untouched.
func (e *Engine) Promote(actor, target Principal) (Principal, error) {
	if err := CheckManagePrincipal(actor, target, ActionPromote); err != nil {
		return Principal{}, err
	}
	promoted := target
	promoted.Role = RoleAdmin
	return promoted, nil
}

// GrantPermission validates and builds a grant of permission to target.
// target.Permissions must reflect the grants currently stored for target.
func (e *Engine) GrantPermission(actor, target Principal, permission Permission) (Grant, error) {
	if !actor.Authenticated() {
		return Grant{}, ErrUnauthorized
	}
	if actor.Role != RoleSuperAdmin {
		return Grant{}, ErrForbidden
	}
	if !target.Role.AdminTier() {
		return Grant{}, ErrGranteeNotAdmin
	}
	if target.Permissions.Has(permission.Name) {
		return Grant{}, ErrDuplicateGrant
	}
	return Grant{
		PrincipalID:    target.ID,
		PermissionID:   permission.ID,
		PermissionName: NormalizePermission(permission.Name),
		GrantedBy:      actor.ID,
		GrantedAt:      e.now(),
	}, nil
}

// RevokePermission validates removal of permission from target.
func (e *Engine) RevokePermission(actor, target Principal, permission Permission) error {
	if !actor.Authenticated() {
		return ErrUnauthorized
	}
	if actor.Role != RoleSuperAdmin {
		return ErrForbidden
	}
	if !target.Permissions.Has(permission.Name) {
		return ErrGrantNotFound
	}
	return nil
}

// Now exposes the engine clock to callers stamping related records.
func (e *Engine) Now() time.Time {
	return e.now()
}
