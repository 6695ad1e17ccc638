// Package middleware exposes the HTTP filters of goSession.Engine.
//
// # Filters
//
//   - [ValidationFilter]: validates, refreshes or clears the session cookie on every
//     request and stores the [goSession.Result] in the request context.
//   - [LoginFilter]: issues a session after a successful POST to the login path.
//   - [RequireSession]: rejects requests without a valid session.
//   - [RequireCSRF]: enforces the CSRF header on an arbitrary route.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// session logic itself; every decision is delegated to the Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Authenticate credentials. The login handler decides who logged in.
package middleware
