// Package middleware provides HTTP middleware for authentication, access
// level enforcement, and request ID propagation.
//
// AuthMiddleware validates Bearer session tokens against the auth service
// and injects the resulting session into the request context. Handlers
// retrieve it with GetSession. Fine-grained study and organization checks
// belong to pkg/rbac; RequireAccessLevel only gates by platform role.
package middleware
