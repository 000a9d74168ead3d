package rbac

import (
	"context"
	"fmt"
	"sort"
)

// Authorizer answers capability questions against an immutable role table.
// Build it once at startup and share it freely; it is safe for concurrent
// use because nothing mutates after construction.
type Authorizer struct {
	roles map[string]Role
}

// NewAuthorizer builds an Authorizer from the given roles. Duplicate role
// names are a configuration bug and fail construction.
func NewAuthorizer(roles []Role) (*Authorizer, error) {
	table := make(map[string]Role, len(roles))
	for _, role := range roles {
		if _, exists := table[role.Name()]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRole, role.Name())
		}
		table[role.Name()] = role
	}
	return &Authorizer{roles: table}, nil
}

// Can returns nil when the named role grants the capability. It returns
// ErrUnknownRole for a role outside the table and ErrPermissionDenied for a
// known role lacking the capability.
func (a *Authorizer) Can(roleName string, capability Capability) error {
	role, ok := a.roles[roleName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, roleName)
	}
	if !role.Can(capability) {
		return fmt.Errorf("%w: role %q lacks %q", ErrPermissionDenied, roleName, capability)
	}
	return nil
}

// CanAny returns nil when the named role grants at least one of the
// capabilities. With no capabilities given it always allows.
func (a *Authorizer) CanAny(roleName string, capabilities ...Capability) error {
	if len(capabilities) == 0 {
		return nil
	}

	role, ok := a.roles[roleName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, roleName)
	}
	for _, c := range capabilities {
		if role.Can(c) {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q lacks all of %v", ErrPermissionDenied, roleName, capabilities)
}

// CanFromContext checks the capability against the role stored in ctx by the
// authentication middleware.
func (a *Authorizer) CanFromContext(ctx context.Context, capability Capability) error {
	roleName, ok := RoleFromContext(ctx)
	if !ok {
		return ErrRoleNotInContext
	}
	return a.Can(roleName, capability)
}

// VerifyRole returns ErrUnknownRole if the name is not in the role table.
// Used when assigning roles to users.
func (a *Authorizer) VerifyRole(roleName string) error {
	if _, ok := a.roles[roleName]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, roleName)
	}
	return nil
}

// RoleNames returns all role names in sorted order.
func (a *Authorizer) RoleNames() []string {
	names := make([]string, 0, len(a.roles))
	for name := range a.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
