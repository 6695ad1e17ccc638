package goSession

import (
	"net/http"
	"strings"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/jwt"
)

// VerifyCSRF checks that r echoes the hash of the CSRF state embedded in
// claims. It returns [ErrInvalidCSRF] when the header is missing, blank or
// does not match, and when the token carries no state at all.
//
// ValidateSession already calls it for the configured protected paths;
// call it directly to guard additional routes.
func (e *Engine) VerifyCSRF(r *http.Request, claims *jwt.Claims) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if r == nil || claims == nil {
		return ErrInvalidCSRF
	}
	state, _ := claims.String(e.config.Session.CSRFProperty)
	if !internal.CSRFHeaderMatches(r.Header.Get(e.config.CSRF.HeaderName), state) {
		return ErrInvalidCSRF
	}
	return nil
}

// csrfProtected reports whether r targets a protected path.
func (e *Engine) csrfProtected(r *http.Request) bool {
	if !e.config.CSRF.Enabled || len(e.protectedPaths) == 0 {
		return false
	}
	_, ok := e.protectedPaths[e.relativePath(r)]
	return ok
}

// relativePath strips the context path from the request path.
func (e *Engine) relativePath(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	path := r.URL.Path
	if cp := e.config.Cookie.ContextPath; cp != "" && strings.HasPrefix(path, cp) {
		path = path[len(cp):]
	}
	return path
}

func protectedPathSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}
