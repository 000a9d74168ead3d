package rbac

import "errors"

// Authorization errors.
var (
	// ErrUnknownRole indicates the role name is not in the role table.
	ErrUnknownRole = errors.New("unknown role")

	// ErrPermissionDenied indicates the role does not grant the required
	// capability.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrRoleNotInContext indicates no role was attached to the request
	// context, usually because authentication middleware did not run.
	ErrRoleNotInContext = errors.New("role not found in context")

	// ErrDuplicateRole indicates the role table defines the same name twice.
	ErrDuplicateRole = errors.New("duplicate role name")
)
