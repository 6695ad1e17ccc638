package goSession

import "errors"

var (
	// ErrInvalidToken is returned when the session cookie holds a structurally
	// invalid token. HTTP filters answer it with 403.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrInvalidCSRF is returned when a protected request lacks a matching CSRF header.
	ErrInvalidCSRF = errors.New("invalid csrf")
	// ErrUserLookup wraps failures of the configured [UserProvider].
	ErrUserLookup = errors.New("user lookup failed")
	// ErrSessionCreationFailed is returned when a session token cannot be issued.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrRevocationUnavailable is returned when the revocation list cannot be read or written.
	ErrRevocationUnavailable = errors.New("revocation backend unavailable")
	// ErrRevocationDisabled is returned by [Engine.Logout] and [Engine.LogoutAll] when no revocation store is configured.
	ErrRevocationDisabled = errors.New("revocation disabled")
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
