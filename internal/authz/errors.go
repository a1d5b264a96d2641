package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized indicates no valid principal was supplied.
	ErrUnauthorized = errors.New("authz: unauthorized")
	// ErrForbidden indicates the principal lacks the required role or grant.
	ErrForbidden = errors.New("authz: forbidden")
	// ErrDuplicateGrant indicates the permission is already granted.
	ErrDuplicateGrant = errors.New("authz: permission already granted")
	// ErrGrantNotFound indicates the pair was never granted.
	ErrGrantNotFound = errors.New("authz: grant not found")
	// ErrSelfTargetNotAllowed indicates an actor targeted itself.
	ErrSelfTargetNotAllowed = errors.New("authz: cannot target yourself")
	// ErrCannotModifySuperAdmin indicates the target is a super admin.
	ErrCannotModifySuperAdmin = errors.New("authz: cannot modify a super admin")
	// ErrAlreadyPromoted indicates the target is already an admin.
	ErrAlreadyPromoted = errors.New("authz: user is already an admin")
	// ErrDuplicatePermission indicates the permission name is taken.
	ErrDuplicatePermission = errors.New("authz: permission already exists")
	// ErrGranteeNotAdmin indicates grants were requested for a non admin principal.
	ErrGranteeNotAdmin = fmt.Errorf("%w: permissions can only be granted to admins", ErrForbidden)
)
