// Package api exposes the HTTP surface for authentication, tenancy
// management, and study access grants.
//
// All routes live under /api/v1. POST /api/v1/login is the only
// unauthenticated route; everything else requires a Bearer session token
// validated by pkg/middleware. Authorization decisions go through
// pkg/rbac's engine, and domain errors map to HTTP statuses in one place
// (writeDomainError) so handlers stay uniform.
package api
