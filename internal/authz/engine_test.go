package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(func() time.Time { return fixedNow })
}

func principal(id int64, role Role, perms ...string) Principal {
	return Principal{ID: id, Role: role, Permissions: NewPermissionSet(perms...)}
}

func TestHasPermissionSuperAdminBypass(t *testing.T) {
	super := principal(1, RoleSuperAdmin)
	for _, name := range []string{"CREATE_EVENT", "MANAGE_PERMISSIONS", "DOES_NOT_EXIST", ""} {
		assert.True(t, HasPermission(super, name), "super admin should pass %q", name)
	}
}

func TestHasPermissionRequiresGrantForAdmin(t *testing.T) {
	admin := principal(2, RoleAdmin, "create_event", " EDIT_EVENT ")
	assert.True(t, HasPermission(admin, "CREATE_EVENT"))
	assert.True(t, HasPermission(admin, "edit_event"))
	assert.False(t, HasPermission(admin, "DELETE_EVENT"))
	assert.False(t, HasPermission(admin, "MANAGE_PERMISSIONS"))
}

func TestHasPermissionIgnoresGrantsBelowAdminTier(t *testing.T) {
	for _, role := range []Role{RoleCustomer, RoleEventCreator} {
		p := principal(3, role, "CREATE_EVENT", "VIEW_ANALYTICS")
		assert.False(t, HasPermission(p, "CREATE_EVENT"), role)
		assert.False(t, HasPermission(p, "VIEW_ANALYTICS"), role)
	}
}

func TestHasPermissionDeniesUngrantedForEveryNonSuperRole(t *testing.T) {
	names := []string{"CREATE_EVENT", "EDIT_EVENT", "DELETE_EVENT", "VIEW_USERS", "MANAGE_ADMINS", "MANAGE_PERMISSIONS", "MANAGE_CATEGORIES", "VIEW_ANALYTICS"}
	for _, role := range []Role{RoleCustomer, RoleEventCreator, RoleAdmin} {
		p := principal(4, role)
		for _, name := range names {
			assert.False(t, HasPermission(p, name), "%s should not hold %s", role, name)
		}
	}
}

func TestHasPermissionAnonymous(t *testing.T) {
	assert.False(t, HasPermission(Principal{}, "CREATE_EVENT"))
	assert.False(t, HasPermission(Principal{Role: RoleAdmin, Permissions: NewPermissionSet("CREATE_EVENT")}, "CREATE_EVENT"))
	require.ErrorIs(t, Require(Principal{Role: RoleSuperAdmin}, "CREATE_EVENT"), ErrUnauthorized)
}

func TestHasPermissionSuperAdminWithoutID(t *testing.T) {
	for _, p := range []Principal{System, {Role: RoleSuperAdmin}} {
		for _, name := range []string{"CREATE_EVENT", "MANAGE_EVENT_STATUS", "NOT_A_PERMISSION"} {
			assert.True(t, HasPermission(p, name), name)
		}
		assert.False(t, p.Authenticated())
	}
}

func TestHasRole(t *testing.T) {
	admin := principal(5, RoleAdmin)
	assert.True(t, HasRole(admin, RoleAdmin, RoleSuperAdmin))
	assert.False(t, HasRole(admin, RoleSuperAdmin))
	assert.False(t, HasRole(admin))
}

func TestCanActOn(t *testing.T) {
	admin := principal(7, RoleAdmin)
	assert.True(t, CanActOn(admin, 7))
	assert.False(t, CanActOn(admin, 8))
	assert.True(t, CanActOn(principal(1, RoleSuperAdmin), 8))
	assert.False(t, CanActOn(Principal{}, 0))
}

func TestRequire(t *testing.T) {
	require.ErrorIs(t, Require(Principal{}, "CREATE_EVENT"), ErrUnauthorized)
	require.ErrorIs(t, Require(principal(2, RoleAdmin), "CREATE_EVENT"), ErrForbidden)
	require.NoError(t, Require(principal(2, RoleAdmin, "CREATE_EVENT"), "CREATE_EVENT"))

	require.ErrorIs(t, RequireRole(Principal{}, RoleAdmin), ErrUnauthorized)
	require.ErrorIs(t, RequireRole(principal(2, RoleAdmin), RoleSuperAdmin), ErrForbidden)
	require.NoError(t, RequireRole(principal(1, RoleSuperAdmin), RoleAdmin, RoleSuperAdmin))
}

func TestCheckManagePrincipalDelete(t *testing.T) {
	super := principal(1, RoleSuperAdmin)
	otherSuper := principal(9, RoleSuperAdmin)
	admin := principal(2, RoleAdmin)
	customer := principal(3, RoleCustomer)

	tests := []struct {
		name   string
		actor  Principal
		target Principal
		want   error
	}{
		{"super deletes admin", super, admin, nil},
		{"super deletes customer", super, customer, nil},
		{"super deletes self", super, super, ErrSelfTargetNotAllowed},
		{"admin deletes self", admin, admin, ErrSelfTargetNotAllowed},
		{"super deletes super", super, otherSuper, ErrCannotModifySuperAdmin},
		{"admin deletes super", admin, super, ErrCannotModifySuperAdmin},
		{"admin deletes admin", admin, principal(4, RoleAdmin), ErrForbidden},
		{"admin deletes customer", admin, customer, ErrForbidden},
		{"anonymous", Principal{}, admin, ErrUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckManagePrincipal(tc.actor, tc.target, ActionDelete)
			if tc.want == nil {
				require.NoError(t, err)
				assert.True(t, CanManagePrincipal(tc.actor, tc.target, ActionDelete))
				return
			}
			require.ErrorIs(t, err, tc.want)
			assert.False(t, CanManagePrincipal(tc.actor, tc.target, ActionDelete))
		})
	}
}

func TestSelfDeleteAlwaysRejected(t *testing.T) {
	for i, role := range Roles {
		p := principal(int64(i+1), role)
		assert.False(t, CanManagePrincipal(p, p, ActionDelete), role)
	}
}

func TestPromote(t *testing.T) {
	engine := newTestEngine()
	super := principal(1, RoleSuperAdmin)

	promoted, err := engine.Promote(super, principal(3, RoleCustomer))
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, promoted.Role)
	assert.Equal(t, int64(3), promoted.ID)

	promoted, err = engine.Promote(super, principal(4, RoleEventCreator))
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, promoted.Role)

	_, err = engine.Promote(super, principal(2, RoleAdmin))
	require.ErrorIs(t, err, ErrAlreadyPromoted)

	_, err = engine.Promote(super, principal(9, RoleSuperAdmin))
	require.ErrorIs(t, err, ErrCannotModifySuperAdmin)

	_, err = engine.Promote(principal(2, RoleAdmin), principal(3, RoleCustomer))
	require.ErrorIs(t, err, ErrForbidden)
}

func TestGrantPermission(t *testing.T) {
	engine := newTestEngine()
	super := principal(1, RoleSuperAdmin)
	target := principal(2, RoleAdmin)
	perm := Permission{ID: 11, Name: "CREATE_EVENT"}

	grant, err := engine.GrantPermission(super, target, perm)
	require.NoError(t, err)
	assert.Equal(t, Grant{PrincipalID: 2, PermissionID: 11, PermissionName: "CREATE_EVENT", GrantedBy: 1, GrantedAt: fixedNow}, grant)

	target.Permissions[grant.PermissionName] = struct{}{}
	_, err = engine.GrantPermission(super, target, perm)
	require.ErrorIs(t, err, ErrDuplicateGrant)
}

func TestGrantPermissionRejections(t *testing.T) {
	engine := newTestEngine()
	perm := Permission{ID: 11, Name: "CREATE_EVENT"}

	_, err := engine.GrantPermission(principal(2, RoleAdmin, "MANAGE_PERMISSIONS"), principal(3, RoleAdmin), perm)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = engine.GrantPermission(principal(1, RoleSuperAdmin), principal(3, RoleCustomer), perm)
	require.ErrorIs(t, err, ErrGranteeNotAdmin)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = engine.GrantPermission(Principal{}, principal(3, RoleAdmin), perm)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRevokePermission(t *testing.T) {
	engine := newTestEngine()
	super := principal(1, RoleSuperAdmin)
	perm := Permission{ID: 11, Name: "CREATE_EVENT"}

	err := engine.RevokePermission(super, principal(2, RoleAdmin), perm)
	require.ErrorIs(t, err, ErrGrantNotFound)

	require.NoError(t, engine.RevokePermission(super, principal(2, RoleAdmin, "CREATE_EVENT"), perm))

	err = engine.RevokePermission(principal(3, RoleAdmin), principal(2, RoleAdmin, "CREATE_EVENT"), perm)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	_, err = ParseRole("OWNER")
	require.Error(t, err)
}

func TestPrincipalContext(t *testing.T) {
	ctx := ContextWithPrincipal(context.Background(), principal(5, RoleAdmin))
	assert.Equal(t, int64(5), PrincipalFromContext(ctx).ID)
	assert.False(t, PrincipalFromContext(context.Background()).Authenticated())
}

func TestErrorTaxonomyIsDistinct(t *testing.T) {
	all := []error{ErrUnauthorized, ErrForbidden, ErrDuplicateGrant, ErrGrantNotFound, ErrSelfTargetNotAllowed, ErrCannotModifySuperAdmin, ErrAlreadyPromoted}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}
