// Package goSession provides cookie-borne JWT session authentication with sliding
// refresh, a hard disconnect ceiling, token revocation and a CSRF double-submit guard.
//
// A session is an HS256-signed token stored in the JWT-SESSION cookie. Each token
// embeds a random CSRF state; the XSRF-TOKEN cookie carries its SHA-256 hash, which
// clients echo in the x-xsrf-token header on protected paths.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Engine], [Builder], [Config], and value types
// ([Result], [MetricsSnapshot], [AuditEvent]). Token encoding lives in the jwt package, key
// material in keystore, revocation in session, and audit dispatch under internal/.
//
// # What this package must NOT do
//
//   - Authenticate credentials. Callers decide who logged in and hand the login to
//     [Engine.GenerateSession].
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Import any sub-package that re-imports goSession (no import cycles).
//
// # Performance contract
//
// ValidateSession is the hot path. Without a revocation store it performs a single user
// lookup; with one it adds one pipelined pair of Redis GETs. Refresh re-signs the token in process.
package goSession
