// Package auth provides credential verification and session management for
// the Cohort platform.
//
// # Overview
//
// This package implements the core authentication flow: argon2id password
// hashing with bounded concurrency, opaque session tokens backed by a cache,
// and bulk revocation via per-user generation counters. Authorization rules
// live in pkg/rbac; persistence adapters live in pkg/storage.
//
// # Logging In
//
//	service := auth.NewService(store, hasher, sessions)
//	token, err := service.Login(ctx, "alice", "s3cret")
//
// An unknown username and a wrong password both return
// ErrInvalidCredentials and cost a full hash verification, so accounts
// cannot be enumerated by response shape or timing.
//
// # Sessions
//
// Tokens are opaque: "cohort_" followed by 32 random bytes, base64
// URL-encoded. The cache record is the only state; there is nothing to
// decode client-side. Validation fails closed when the cache is
// unreachable.
//
//	session, err := service.Authenticate(ctx, token)
//
// Revoking every session for a user bumps their generation counter;
// outstanding sessions carrying the old generation stop validating
// immediately.
package auth
