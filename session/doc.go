// Package session provides the Redis-backed revocation list for session tokens.
//
// Signed session tokens are verifiable without server state. This package adds
// the small amount of state needed for explicit logout: a denylist of token ids
// kept until each token's natural expiry, and a per-subject cut-off that
// revokes every token issued before a given instant.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) only. It does NOT interpret
// JWT tokens or cookies; callers pass the token id, subject and creation date.
//
// # What this package must NOT do
//
//   - Import goSession or jwt (no upward imports).
//   - Store token strings; only ids and timestamps are persisted.
package session
