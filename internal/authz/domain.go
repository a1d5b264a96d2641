// Package authz decides who may act on what in the back office.
//
// Every check takes the acting principal as an explicit argument and performs
// no I/O. Callers load principals and grants, ask the engine, and persist the
// outcome themselves.
package authz

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Role is the coarse tier assigned to every principal.
type Role string

const (
	RoleCustomer     Role = "CUSTOMER"
	RoleEventCreator Role = "EVENT_CREATOR"
	RoleAdmin        Role = "ADMIN"
	RoleSuperAdmin   Role = "SUPER_ADMIN"
)

// Roles lists every role in ascending privilege order.
var Roles = []Role{RoleCustomer, RoleEventCreator, RoleAdmin, RoleSuperAdmin}

// ParseRole converts raw input into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("authz: unknown role %q", raw)
	}
	return role, nil
}

// Valid reports whether the role belongs to the closed enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleEventCreator, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// AdminTier reports whether grants are meaningful for the role.
func (r Role) AdminTier() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

func (r Role) String() string { return string(r) }

// PermissionSet holds normalised permission names.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from raw names.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, name := range names {
		if n := NormalizePermission(name); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// Has reports membership of name.
func (s PermissionSet) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s[NormalizePermission(name)]
	return ok
}

// Names returns the sorted permission names.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizePermission canonicalises a permission name.
func NormalizePermission(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Principal is an authenticated actor evaluated for authorization.
type Principal struct {
	ID          int64         `json:"id"`
	Email       string        `json:"email"`
	Name        string        `json:"name"`
	Role        Role          `json:"role"`
	Permissions PermissionSet `json:"-"`
}

// System acts for scheduled sweeps. It has no user row, so it never
// authenticates over HTTP and audit entries record actor 0.
var System = Principal{Name: "system", Role: RoleSuperAdmin}

// Authenticated reports whether the principal carries an identity.
func (p Principal) Authenticated() bool {
	return p.ID > 0 && p.Role.Valid()
}

// Permission is a named capability.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Grant records that a permission was extended to a principal.
type Grant struct {
	PrincipalID    int64     `json:"userId"`
	PermissionID   int64     `json:"permissionId"`
	PermissionName string    `json:"permissionName"`
	GrantedBy      int64     `json:"grantedBy"`
	GrantedAt      time.Time `json:"grantedAt"`
}

// ManageAction identifies an operation one principal performs on another.
type ManageAction string

const (
	ActionDelete  ManageAction = "delete"
	ActionPromote ManageAction = "promote"
)
