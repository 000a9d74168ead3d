package middleware

import (
	"errors"
	"net/http"

	"github.com/aurumhq/aurum-api/internal/api/shared"
	"github.com/aurumhq/aurum-api/internal/rbac"
)

// AuthorizeMiddleware gates route groups on role capabilities. It must run
// after AuthMiddleware.Authenticate, which puts the role into the request
// context.
type AuthorizeMiddleware struct {
	authorizer *rbac.Authorizer
}

// NewAuthorizeMiddleware creates a new AuthorizeMiddleware.
func NewAuthorizeMiddleware(authorizer *rbac.Authorizer) *AuthorizeMiddleware {
	if authorizer == nil {
		panic("authorizer cannot be nil")
	}
	return &AuthorizeMiddleware{authorizer: authorizer}
}

// Require allows the request through only when the authenticated role grants
// the capability. A request with no role in context was not authenticated
// and is rejected with 401; a known role lacking the capability gets 403.
func (m *AuthorizeMiddleware) Require(capability rbac.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := m.authorizer.CanFromContext(r.Context(), capability)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			if errors.Is(err, rbac.ErrRoleNotInContext) {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}
			shared.RespondWithErrorAndLog(w, r, http.StatusForbidden, "Permission denied", err)
		})
	}
}

// RequireAny allows the request through when the role grants at least one of
// the capabilities. Used for routes shared between capability families.
func (m *AuthorizeMiddleware) RequireAny(capabilities ...rbac.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roleName, ok := rbac.RoleFromContext(r.Context())
			if !ok {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
				return
			}

			if err := m.authorizer.CanAny(roleName, capabilities...); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusForbidden, "Permission denied", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
