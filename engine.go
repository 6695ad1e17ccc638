package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/internal"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
)

// Engine issues, validates, refreshes and removes cookie sessions.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config         Config
	codec          *jwt.Codec
	users          UserProvider
	revoker        Revoker
	bridge         SessionBridge
	audit          *internalaudit.Dispatcher
	metrics        *Metrics
	logger         *slog.Logger
	now            func() time.Time
	newState       func() (string, error)
	protectedPaths map[string]struct{}
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

// Close flushes pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters. It is empty when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// GenerateSession issues a new session for login and writes the cookie pair
// to w. The token carries a fresh CSRF state and the current time as its
// last refresh.
//
// Errors wrap [ErrSessionCreationFailed].
func (e *Engine) GenerateSession(ctx context.Context, w http.ResponseWriter, r *http.Request, login string) error {
	if e == nil || e.codec == nil {
		return ErrEngineNotReady
	}
	if login == "" {
		return fmt.Errorf("%w: login is required", ErrSessionCreationFailed)
	}

	state, err := e.newState()
	if err != nil {
		e.sessionCreateFailed(ctx, login, r)
		return fmt.Errorf("%w: csrf state: %v", ErrSessionCreationFailed, err)
	}

	now := e.now()
	token, err := e.codec.Encode(jwt.Session{
		Subject: login,
		TTL:     e.config.Session.Timeout,
		Properties: map[string]any{
			e.config.Session.LastRefreshProperty: now.UnixMilli(),
			e.config.Session.CSRFProperty:        state,
		},
	})
	if err != nil {
		e.sessionCreateFailed(ctx, login, r)
		return fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	e.writeSessionCookies(w, r, token, internal.HashCSRFState(state))

	e.logger.DebugContext(ctx, "create session", "login", login)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, login, "", e.relativePath(r), "", nil)
	return nil
}

func (e *Engine) sessionCreateFailed(ctx context.Context, login string, r *http.Request) {
	e.metricInc(MetricSessionCreateFailure)
	e.emitAudit(ctx, auditEventSessionCreateFailed, false, login, "", e.relativePath(r), auditErrSessionCreateFailed, nil)
}

// ValidateSession authenticates r from its session cookie.
//
// Outcomes:
//   - no cookie: [StatusNoCookie], nothing written.
//   - bad signature or expired: session removed, [StatusInvalid].
//   - revoked token: session removed, [StatusRevoked].
//   - older than DisconnectTimeout: session removed, [StatusDisconnected].
//   - subject not an active user: session removed, [StatusUserMissing].
//   - otherwise [StatusValid]. The legacy user id attribute is set, the CSRF
//     header is checked on protected paths and the token is re-signed once
//     RefreshInterval has elapsed since its last refresh.
//
// A structurally invalid token returns an error wrapping [ErrInvalidToken]
// and the underlying *jwt.MalformedTokenError; cookies are left as they are.
// A CSRF mismatch returns [ErrInvalidCSRF]. Lookup failures wrap
// [ErrUserLookup] or [ErrRevocationUnavailable]. The Result is nil whenever
// the error is not.
//
//	Performance: one user lookup, plus one pipelined pair of Redis GETs when a revocation store is configured.
func (e *Engine) ValidateSession(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Result, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	token, ok := e.sessionToken(r)
	if !ok {
		e.metricInc(MetricSessionNoCookie)
		return &Result{Status: StatusNoCookie}, nil
	}

	claims, present, err := e.codec.Decode(token)
	if err != nil {
		if errors.Is(err, jwt.ErrMalformedToken) {
			e.metricInc(MetricSessionMalformed)
			e.emitAudit(ctx, auditEventSessionMalformed, false, "", "", e.relativePath(r), auditErrInvalidToken, nil)
			e.logger.DebugContext(ctx, "invalid token", "error", err)
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return nil, err
	}
	if !present {
		e.metricInc(MetricSessionInvalid)
		e.emitAudit(ctx, auditEventSessionInvalid, false, "", "", e.relativePath(r), "", nil)
		e.removeSession(ctx, w, r, "invalid")
		return &Result{Status: StatusInvalid}, nil
	}

	if e.revoker != nil {
		revoked, err := e.revoker.IsRevoked(ctx, claims.ID, claims.Subject, claims.IssuedAt)
		if err != nil {
			e.metricInc(MetricRevocationFailure)
			return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		}
		if revoked {
			e.metricInc(MetricSessionRevoked)
			e.emitAudit(ctx, auditEventSessionRevoked, false, claims.Subject, claims.ID, e.relativePath(r), "", nil)
			e.removeSession(ctx, w, r, "revoked")
			return &Result{Status: StatusRevoked}, nil
		}
	}

	now := e.now()
	if now.After(claims.IssuedAt.Add(e.config.Session.DisconnectTimeout)) {
		e.metricInc(MetricSessionDisconnected)
		e.emitAudit(ctx, auditEventSessionDisconnected, false, claims.Subject, claims.ID, e.relativePath(r), "",
			durationMetadata("age", now.Sub(claims.IssuedAt)))
		e.removeSession(ctx, w, r, "disconnected")
		return &Result{Status: StatusDisconnected}, nil
	}

	user, err := e.users.GetActiveUserByLogin(ctx, claims.Subject)
	if err != nil {
		e.metricInc(MetricUserLookupFailure)
		e.emitAudit(ctx, auditEventSessionUserMissing, false, claims.Subject, claims.ID, e.relativePath(r), auditErrUserLookup, nil)
		return nil, fmt.Errorf("%w: %v", ErrUserLookup, err)
	}
	if user == nil || !user.Active {
		e.metricInc(MetricSessionUserMissing)
		e.emitAudit(ctx, auditEventSessionUserMissing, false, claims.Subject, claims.ID, e.relativePath(r), "", nil)
		e.removeSession(ctx, w, r, "user missing")
		return &Result{Status: StatusUserMissing}, nil
	}

	e.logger.DebugContext(ctx, "validate session", "login", claims.Subject)
	e.bridge.SetAttribute(ctx, e.config.Session.UserIDAttribute, user.ID)

	if e.csrfProtected(r) {
		if err := e.VerifyCSRF(r, claims); err != nil {
			e.metricInc(MetricCSRFRejected)
			e.emitAudit(ctx, auditEventCSRFRejected, false, claims.Subject, claims.ID, e.relativePath(r), auditErrInvalidCSRF, nil)
			return nil, err
		}
	}

	result := &Result{Status: StatusValid, User: user, Claims: claims}
	if now.After(e.lastRefresh(claims).Add(e.config.Session.RefreshInterval)) {
		refreshed, err := e.refresh(ctx, w, r, claims, now)
		if err != nil {
			return nil, err
		}
		result.Claims = refreshed
		result.Refreshed = true
	}

	e.metricInc(MetricSessionValid)
	return result, nil
}

// lastRefresh returns the time the token was last issued or refreshed.
// Tokens without the marker fall back to their creation date.
func (e *Engine) lastRefresh(claims *jwt.Claims) time.Time {
	if ms, ok := claims.Int64(e.config.Session.LastRefreshProperty); ok {
		return time.UnixMilli(ms)
	}
	return claims.IssuedAt
}

// refresh re-signs claims with a new expiration and last refresh marker. The
// token id, creation date and CSRF state are preserved, so the disconnect
// ceiling still counts from the original login.
func (e *Engine) refresh(ctx context.Context, w http.ResponseWriter, r *http.Request, claims *jwt.Claims, now time.Time) (*jwt.Claims, error) {
	next := claims.Clone()
	next.Properties[e.config.Session.LastRefreshProperty] = now.UnixMilli()

	state, _ := next.String(e.config.Session.CSRFProperty)
	if state == "" {
		// tokens issued without a state get one on their first refresh
		fresh, err := e.newState()
		if err != nil {
			return nil, fmt.Errorf("%w: csrf state: %v", ErrSessionCreationFailed, err)
		}
		state = fresh
		next.Properties[e.config.Session.CSRFProperty] = state
	}

	token, err := e.codec.Refresh(next, e.config.Session.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	next.ExpiresAt = now.Add(e.config.Session.Timeout)

	e.writeSessionCookies(w, r, token, internal.HashCSRFState(state))

	e.logger.DebugContext(ctx, "refresh session", "login", claims.Subject)
	e.metricInc(MetricSessionRefreshed)
	e.emitAudit(ctx, auditEventSessionRefreshed, true, claims.Subject, claims.ID, e.relativePath(r), "", nil)
	return next, nil
}

// RemoveSession clears the legacy user id attribute and both cookies.
func (e *Engine) RemoveSession(w http.ResponseWriter, r *http.Request) {
	if e == nil {
		return
	}
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}
	e.removeSession(ctx, w, r, "explicit")
}

func (e *Engine) removeSession(ctx context.Context, w http.ResponseWriter, r *http.Request, reason string) {
	e.logger.DebugContext(ctx, "remove session", "reason", reason)
	e.bridge.RemoveAttribute(ctx, e.config.Session.UserIDAttribute)
	e.clearSessionCookies(w, r)
	e.metricInc(MetricSessionRemoved)
}

// Logout ends the session carried by r. When a revocation store is
// configured the token id is denylisted until the token's natural expiry, so
// a copy of the cookie cannot be replayed. The cookie pair is cleared in
// every case, including when the cookie holds no valid token.
//
//	Performance: 1 Redis SET when a revocation store is configured.
func (e *Engine) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if e == nil || e.codec == nil {
		return ErrEngineNotReady
	}

	var login, tokenID string
	if token, ok := e.sessionToken(r); ok {
		claims, present, err := e.codec.Decode(token)
		if err == nil && present {
			login, tokenID = claims.Subject, claims.ID
			if e.revoker != nil {
				if err := e.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt); err != nil {
					e.metricInc(MetricRevocationFailure)
					e.emitAudit(ctx, auditEventLogout, false, login, tokenID, e.relativePath(r), auditErrRevocation, nil)
					return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
				}
			}
		}
	}

	e.removeSession(ctx, w, r, "logout")
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, login, tokenID, e.relativePath(r), "", nil)
	return nil
}

// LogoutAll revokes every session of login issued up to now. The cut-off is
// kept for DisconnectTimeout, past which no older token can validate anyway.
// Cut-offs have one second resolution: a session created in the same second
// is revoked too.
//
// It returns [ErrRevocationDisabled] when no revocation store is configured.
func (e *Engine) LogoutAll(ctx context.Context, login string) error {
	if e == nil || e.codec == nil {
		return ErrEngineNotReady
	}
	if e.revoker == nil {
		return ErrRevocationDisabled
	}
	if login == "" {
		return errors.New("login is required")
	}

	if err := e.revoker.RevokeSubject(ctx, login, e.now(), e.config.Session.DisconnectTimeout); err != nil {
		e.metricInc(MetricRevocationFailure)
		e.emitAudit(ctx, auditEventLogoutAll, false, login, "", "", auditErrRevocation, nil)
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}

	e.logger.DebugContext(ctx, "revoke all sessions", "login", login)
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, login, "", "", "", nil)
	return nil
}
