package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

type resultContextKey struct{}

// ResultFromContext returns the validation result stored by [ValidationFilter].
func ResultFromContext(ctx context.Context) (*goSession.Result, bool) {
	res, ok := ctx.Value(resultContextKey{}).(*goSession.Result)
	return res, ok
}

// ValidationFilter runs Engine.ValidateSession before every request.
//
// A malformed token or a CSRF mismatch is answered with 403 and an empty
// body; any other validation error with 500. In both cases next is not
// invoked. Otherwise next runs with the result in its context, including
// when there is no session at all.
//
// A POST to the login path is not validated: it carries no result and a
// successful login replaces whatever cookie pair the browser holds, so a
// malformed cookie never locks a user out.
func ValidationFilter(engine *goSession.Engine) func(http.Handler) http.Handler {
	var loginPath string
	if engine != nil {
		cfg := engine.Config()
		loginPath = cfg.Cookie.ContextPath + cfg.Session.LoginPath
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if r.Method == http.MethodPost && r.URL.Path == loginPath {
				next.ServeHTTP(w, r)
				return
			}

			ctx, _ := goSession.WithAttributes(r.Context())
			if ip := clientIP(r); ip != "" {
				ctx = goSession.WithClientIP(ctx, ip)
			}
			r = r.WithContext(ctx)

			res, err := engine.ValidateSession(ctx, w, r)
			if err != nil {
				if errors.Is(err, goSession.ErrInvalidToken) || errors.Is(err, goSession.ErrInvalidCSRF) {
					engine.Logger().DebugContext(ctx, "invalid token", "error", err)
					w.WriteHeader(http.StatusForbidden)
					return
				}
				engine.Logger().ErrorContext(ctx, "session validation failed", "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			ctx = context.WithValue(ctx, resultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
