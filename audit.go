package goSession

import (
	"context"
	"time"
)

const (
	auditEventSessionCreated      = "session_created"
	auditEventSessionCreateFailed = "session_create_failed"
	auditEventSessionRefreshed    = "session_refreshed"
	auditEventSessionInvalid      = "session_invalid"
	auditEventSessionMalformed    = "session_malformed"
	auditEventSessionRevoked      = "session_revoked"
	auditEventSessionDisconnected = "session_disconnected"
	auditEventSessionUserMissing  = "session_user_missing"
	auditEventCSRFRejected        = "csrf_rejected"
	auditEventLogout              = "session_logout"
	auditEventLogoutAll           = "session_logout_all"
)

// AuditErrorCode is the stable error vocabulary of [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrInvalidCSRF         AuditErrorCode = "invalid_csrf"
	auditErrUserLookup          AuditErrorCode = "user_lookup_failed"
	auditErrRevocation          AuditErrorCode = "revocation_unavailable"
	auditErrSessionCreateFailed AuditErrorCode = "session_creation_failed"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	login string,
	tokenID string,
	path string,
	code AuditErrorCode,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Login:     login,
		TokenID:   tokenID,
		Path:      path,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Error:     string(code),
		Metadata:  metadata,
	}
	e.audit.Emit(ctx, event)
}

func durationMetadata(key string, d time.Duration) func() map[string]string {
	return func() map[string]string {
		return map[string]string{key: d.Round(time.Second).String()}
	}
}
