package goSession

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
)

// User is an account as seen by the session layer.
type User struct {
	ID     int64
	Login  string
	Active bool
}

// UserProvider resolves logins to active users.
//
// GetActiveUserByLogin returns (nil, nil) when no active user has that login.
// A non-nil error means the lookup itself failed and is reported to callers
// wrapped in [ErrUserLookup].
type UserProvider interface {
	GetActiveUserByLogin(ctx context.Context, login string) (*User, error)
}

// SessionBridge exposes the server-side session attribute used by legacy
// handlers. The engine stores the numeric user id under the configured
// attribute name on every valid request and removes it when the session ends.
type SessionBridge interface {
	SetAttribute(ctx context.Context, name string, value any)
	RemoveAttribute(ctx context.Context, name string)
}

// KeySource supplies the HMAC signing key. *keystore.Store satisfies it.
type KeySource = jwt.KeySource

// Revoker is the revocation list consulted by [Engine.ValidateSession] and
// updated by [Engine.Logout]. *session.Store satisfies it.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	RevokeSubject(ctx context.Context, subject string, at time.Time, retention time.Duration) error
	IsRevoked(ctx context.Context, tokenID, subject string, issuedAt time.Time) (bool, error)
}

// Status is the outcome of [Engine.ValidateSession].
type Status uint8

const (
	// StatusNoCookie means the request carried no session cookie. Nothing was touched.
	StatusNoCookie Status = iota
	// StatusInvalid means the token failed signature or expiry checks. The session was cleared.
	StatusInvalid
	// StatusRevoked means the token was explicitly revoked. The session was cleared.
	StatusRevoked
	// StatusDisconnected means the token is older than the disconnect ceiling. The session was cleared.
	StatusDisconnected
	// StatusUserMissing means the subject no longer resolves to an active user. The session was cleared.
	StatusUserMissing
	// StatusValid means the request is authenticated.
	StatusValid
)

var statusNames = [...]string{
	StatusNoCookie:     "no_cookie",
	StatusInvalid:      "invalid",
	StatusRevoked:      "revoked",
	StatusDisconnected: "disconnected",
	StatusUserMissing:  "user_missing",
	StatusValid:        "valid",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Result is returned by [Engine.ValidateSession]. User and Claims are set
// only when Status is [StatusValid].
type Result struct {
	Status    Status
	User      *User
	Claims    *jwt.Claims
	Refreshed bool
}

// Authenticated reports whether r carries a valid session.
func (r *Result) Authenticated() bool {
	return r != nil && r.Status == StatusValid
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine’s audit dispatcher.
// Implementations must be safe for concurrent use.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// SlogSink is an [AuditSink] that logs events through a [slog.Logger].
type SlogSink = internalaudit.SlogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink creates a [SlogSink]. A nil logger uses [slog.Default].
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
