package rbac

import "context"

// roleContextKey is the context key for storing the authenticated role.
type roleContextKey struct{}

// WithRole returns a new context carrying the user's role name.
func WithRole(ctx context.Context, roleName string) context.Context {
	return context.WithValue(ctx, roleContextKey{}, roleName)
}

// RoleFromContext retrieves the role name stored by WithRole.
func RoleFromContext(ctx context.Context) (string, bool) {
	roleName, ok := ctx.Value(roleContextKey{}).(string)
	return roleName, ok
}
