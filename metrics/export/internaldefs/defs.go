package internaldefs

import (
	"math"

	goSession "github.com/MrEthical07/goSession"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goSession.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Sessions issued after a successful login."},
	{ID: goSession.MetricSessionCreateFailure, Name: "gosession_session_create_failure_total", Help: "Login attempts for which no session token could be issued."},
	{ID: goSession.MetricSessionValid, Name: "gosession_session_valid_total", Help: "Requests carrying a valid session."},
	{ID: goSession.MetricSessionNoCookie, Name: "gosession_session_no_cookie_total", Help: "Requests without a session cookie."},
	{ID: goSession.MetricSessionInvalid, Name: "gosession_session_invalid_total", Help: "Expired or badly signed session tokens."},
	{ID: goSession.MetricSessionMalformed, Name: "gosession_session_malformed_total", Help: "Structurally invalid session tokens."},
	{ID: goSession.MetricSessionRevoked, Name: "gosession_session_revoked_total", Help: "Session tokens rejected by the revocation list."},
	{ID: goSession.MetricSessionDisconnected, Name: "gosession_session_disconnected_total", Help: "Sessions older than the disconnect ceiling."},
	{ID: goSession.MetricSessionUserMissing, Name: "gosession_session_user_missing_total", Help: "Session tokens whose user is missing or inactive."},
	{ID: goSession.MetricSessionRefreshed, Name: "gosession_session_refreshed_total", Help: "Session tokens re-signed with a new expiry."},
	{ID: goSession.MetricSessionRemoved, Name: "gosession_session_removed_total", Help: "Session cookie pairs cleared."},
	{ID: goSession.MetricCSRFRejected, Name: "gosession_csrf_rejected_total", Help: "Protected requests rejected for a missing or wrong CSRF header."},
	{ID: goSession.MetricUserLookupFailure, Name: "gosession_user_lookup_failure_total", Help: "User provider errors."},
	{ID: goSession.MetricRevocationFailure, Name: "gosession_revocation_failure_total", Help: "Revocation backend errors."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Single-session logout operations."},
	{ID: goSession.MetricLogoutAll, Name: "gosession_logout_all_total", Help: "Logout-all operations."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricValidateLatency, Name: "gosession_validate_latency_seconds", Help: "Session validation latency."},
}

// AuditDroppedName is the counter exported for dispatcher drops.
const (
	AuditDroppedName = "gosession_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
)

// HistogramBounds are the bucket upper bounds in seconds, matching the
// engine's millisecond buckets.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, math.Inf(1)}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
