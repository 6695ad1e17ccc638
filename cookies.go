package goSession

import (
	"net/http"
	"time"
)

// sessionToken returns the value of the session cookie. An empty value
// counts as absent.
func (e *Engine) sessionToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(e.config.Cookie.SessionName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (e *Engine) cookiePath() string {
	return e.config.Cookie.ContextPath + "/"
}

func (e *Engine) secureCookies(r *http.Request) bool {
	switch e.config.Cookie.Secure {
	case CookieSecureAlways:
		return true
	case CookieSecureNever:
		return false
	default:
		return r != nil && r.TLS != nil
	}
}

// newCookie builds one half of the cookie pair. A non-positive maxAge
// produces a deletion cookie (Max-Age=0, empty value).
func (e *Engine) newCookie(r *http.Request, name, value string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     e.cookiePath(),
		Domain:   e.config.Cookie.Domain,
		Secure:   e.secureCookies(r),
		HttpOnly: httpOnly,
		SameSite: e.config.Cookie.SameSite,
	}
	if maxAge <= 0 {
		c.Value = ""
		c.MaxAge = -1
		return c
	}
	c.MaxAge = int(maxAge / time.Second)
	return c
}

// writeSessionCookies sets the token cookie (HttpOnly) and the CSRF cookie
// (readable by scripts) with the session timeout as Max-Age.
func (e *Engine) writeSessionCookies(w http.ResponseWriter, r *http.Request, token, csrfHash string) {
	timeout := e.config.Session.Timeout
	http.SetCookie(w, e.newCookie(r, e.config.Cookie.SessionName, token, timeout, true))
	http.SetCookie(w, e.newCookie(r, e.config.Cookie.CSRFName, csrfHash, timeout, false))
}

func (e *Engine) clearSessionCookies(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, e.newCookie(r, e.config.Cookie.SessionName, "", 0, true))
	http.SetCookie(w, e.newCookie(r, e.config.Cookie.CSRFName, "", 0, false))
}
