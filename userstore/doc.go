// Package userstore provides [goSession.UserProvider] implementations: an
// in-memory directory for tests and demos, and a Redis read-through cache
// that fronts any other provider.
//
// # Design
//
// The cache persists a versioned, binary-encoded user record in Redis with a
// TTL. Only active users are cached; misses and inactive users always reach
// the backing provider, so a deactivation takes effect at the latest when the
// cached record expires, or immediately after [Cache.Invalidate].
//
// # What this package must NOT do
//
//   - Cache negative lookups.
//   - Fail a lookup because Redis is down when the backing provider answers.
package userstore
