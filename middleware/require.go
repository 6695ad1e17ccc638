package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// RequireSession answers 401 unless [ValidationFilter] established a valid
// session for the request.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := ResultFromContext(r.Context())
		if !ok || !res.Authenticated() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCSRF enforces the CSRF header on routes outside the configured
// protected paths. It implies [RequireSession]. A mismatch is answered with
// 403 and an empty body.
func RequireCSRF(engine *goSession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, _ := ResultFromContext(r.Context())
			if err := engine.VerifyCSRF(r, res.Claims); err != nil {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
