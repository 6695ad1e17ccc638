package goSession

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config holds every tunable of the session engine.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session SessionConfig
	Cookie  CookieConfig
	CSRF    CSRFConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls token lifetimes and the names of the values a token carries.
type SessionConfig struct {
	// Timeout is the inactivity window: the token and cookie expire this long
	// after the last issue or refresh.
	Timeout time.Duration
	// DisconnectTimeout is the hard ceiling measured from the original login.
	// Refresh never extends it.
	DisconnectTimeout time.Duration
	// RefreshInterval is how long a token is used before it is re-signed.
	RefreshInterval time.Duration
	// Leeway tolerates clock skew on exp checks. 0 to 2 minutes.
	Leeway time.Duration

	UserIDAttribute     string // legacy session attribute, "user_id"
	LastRefreshProperty string // token property holding the last refresh, Unix ms
	CSRFProperty        string // token property holding the CSRF state
	LoginPath           string // path served by the login filter
	RedisPrefix         string // key namespace of the revocation list
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieSecurity selects how the Secure attribute of session cookies is set.
type CookieSecurity uint8

const (
	// CookieSecureAuto marks cookies Secure when the request arrived over TLS.
	CookieSecureAuto CookieSecurity = iota
	// CookieSecureAlways always marks cookies Secure. Use behind a TLS-terminating proxy.
	CookieSecureAlways
	// CookieSecureNever never marks cookies Secure.
	CookieSecureNever
)

// CookieConfig controls the session cookie pair.
type CookieConfig struct {
	SessionName string
	CSRFName    string
	// ContextPath is the mount point of the application, "" or "/app".
	// Cookies are scoped to ContextPath + "/".
	ContextPath string
	Domain      string
	Secure      CookieSecurity
	SameSite    http.SameSite
}

/*
====================================
CSRF CONFIG
====================================
*/

// CSRFConfig controls the double-submit check.
type CSRFConfig struct {
	Enabled    bool
	HeaderName string
	// ProtectedPaths are matched exactly against the request path with the
	// context path stripped.
	ProtectedPaths []string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the stock configuration: three day inactivity
// timeout, ninety day disconnect ceiling and five minute refresh interval.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			Timeout:             3 * 24 * time.Hour,
			DisconnectTimeout:   90 * 24 * time.Hour,
			RefreshInterval:     5 * time.Minute,
			Leeway:              0,
			UserIDAttribute:     "user_id",
			LastRefreshProperty: "lastRefreshTime",
			CSRFProperty:        "xsrfToken",
			LoginPath:           "/sessions/login",
			RedisPrefix:         "gs",
		},
		Cookie: CookieConfig{
			SessionName: "JWT-SESSION",
			CSRFName:    "XSRF-TOKEN",
			ContextPath: "",
			Secure:      CookieSecureAuto,
		},
		CSRF: CSRFConfig{
			Enabled:        true,
			HeaderName:     "x-xsrf-token",
			ProtectedPaths: []string{"/issues/bulk_change"},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.CSRF.ProtectedPaths = cloneStrings(cfg.CSRF.ProtectedPaths)
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for inconsistent or unusable values.
func (c *Config) Validate() error {
	// Session
	if c.Session.Timeout <= 0 {
		return errors.New("Session Timeout must be > 0")
	}
	if c.Session.DisconnectTimeout < c.Session.Timeout {
		return errors.New("Session DisconnectTimeout must be >= Timeout")
	}
	if c.Session.RefreshInterval <= 0 {
		return errors.New("Session RefreshInterval must be > 0")
	}
	if c.Session.RefreshInterval >= c.Session.Timeout {
		return errors.New("Session RefreshInterval must be < Timeout")
	}
	if c.Session.Leeway < 0 || c.Session.Leeway > 2*time.Minute {
		return errors.New("Session Leeway must be between 0 and 2m")
	}
	if c.Session.UserIDAttribute == "" {
		return errors.New("Session UserIDAttribute must not be empty")
	}
	if c.Session.LastRefreshProperty == "" || c.Session.CSRFProperty == "" {
		return errors.New("Session token property names must not be empty")
	}
	if c.Session.LastRefreshProperty == c.Session.CSRFProperty {
		return errors.New("Session LastRefreshProperty and CSRFProperty must differ")
	}
	if isRegisteredClaim(c.Session.LastRefreshProperty) || isRegisteredClaim(c.Session.CSRFProperty) {
		return errors.New("Session token property names must not shadow registered claims")
	}
	if !strings.HasPrefix(c.Session.LoginPath, "/") {
		return errors.New("Session LoginPath must start with /")
	}

	// Cookie
	if !validCookieName(c.Cookie.SessionName) || !validCookieName(c.Cookie.CSRFName) {
		return errors.New("Cookie names must be non-empty tokens")
	}
	if c.Cookie.SessionName == c.Cookie.CSRFName {
		return errors.New("Cookie SessionName and CSRFName must differ")
	}
	if c.Cookie.ContextPath != "" {
		if !strings.HasPrefix(c.Cookie.ContextPath, "/") || strings.HasSuffix(c.Cookie.ContextPath, "/") {
			return errors.New("Cookie ContextPath must start with / and must not end with /")
		}
	}
	if c.Cookie.Secure > CookieSecureNever {
		return errors.New("Cookie Secure mode is invalid")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && c.Cookie.Secure == CookieSecureNever {
		return errors.New("Cookie SameSite=None requires Secure cookies")
	}

	// CSRF
	if c.CSRF.Enabled {
		if strings.TrimSpace(c.CSRF.HeaderName) == "" {
			return errors.New("CSRF HeaderName must not be empty")
		}
		for _, p := range c.CSRF.ProtectedPaths {
			if !strings.HasPrefix(p, "/") {
				return errors.New("CSRF ProtectedPaths entries must start with /")
			}
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

func isRegisteredClaim(name string) bool {
	switch name {
	case "jti", "sub", "iat", "exp", "nbf", "iss", "aud":
		return true
	default:
		return false
	}
}

func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c >= 0x7f || strings.IndexByte("()<>@,;:\\\"/[]?={}", c) >= 0 {
			return false
		}
	}
	return true
}
