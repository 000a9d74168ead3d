// Package rbac implements role-based access control with typed capability
// sets.
//
// A Role is a named set of Capability constants; the Authorizer is built once
// from an immutable role table (DefaultRoles) and answers Can questions by
// exact set membership. There is no inheritance and no wildcard matching:
// with five roles and a dozen capabilities, spelling grants out is clearer
// than a resolution algorithm.
//
// The HTTP middleware stores the authenticated user's role in the request
// context via WithRole; route groups gate themselves with CanFromContext.
package rbac
