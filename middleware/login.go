package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"

	goSession "github.com/MrEthical07/goSession"
)

type loginContextKey struct{}

type loginHolder struct {
	mu    sync.Mutex
	login string
}

// SetLogin records that the current request authenticated login. Login
// handlers behind [LoginFilter] call it after checking credentials.
// It is a no-op outside a LoginFilter.
func SetLogin(r *http.Request, login string) {
	h, ok := r.Context().Value(loginContextKey{}).(*loginHolder)
	if !ok {
		return
	}
	h.mu.Lock()
	h.login = login
	h.mu.Unlock()
}

// LoginFromRequest returns the login recorded by [SetLogin].
func LoginFromRequest(r *http.Request) (string, bool) {
	h, ok := r.Context().Value(loginContextKey{}).(*loginHolder)
	if !ok {
		return "", false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.login, h.login != ""
}

// LoginFilter issues a session once a POST to the configured login path has
// been handled. The downstream response is buffered so the session cookies
// can still be added after the handler wrote its status and body.
//
// authenticated reports which login, if any, the handler authenticated. A nil
// authenticated uses [LoginFromRequest]. Other paths and methods pass through
// untouched.
func LoginFilter(engine *goSession.Engine, authenticated func(*http.Request) (string, bool)) func(http.Handler) http.Handler {
	if authenticated == nil {
		authenticated = LoginFromRequest
	}
	var loginPath string
	if engine != nil {
		cfg := engine.Config()
		loginPath = cfg.Cookie.ContextPath + cfg.Session.LoginPath
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || r.Method != http.MethodPost || r.URL.Path != loginPath {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), loginContextKey{}, &loginHolder{})
			if ip := clientIP(r); ip != "" {
				ctx = goSession.WithClientIP(ctx, ip)
			}
			r = r.WithContext(ctx)

			buf := &bufferedResponse{ResponseWriter: w}
			next.ServeHTTP(buf, r)

			if login, ok := authenticated(r); ok {
				if err := engine.GenerateSession(ctx, w, r, login); err != nil {
					engine.Logger().ErrorContext(ctx, "session creation failed", "login", login, "error", err)
					clear(w.Header())
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
			}
			buf.flush()
		})
	}
}

// bufferedResponse holds back status and body. Headers go straight to the
// wrapped writer's map, which is not sent before flush.
type bufferedResponse struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(p)
}

// Flush is a no-op; everything is held until the session cookies are set.
func (b *bufferedResponse) Flush() {}

// Unwrap lets http.ResponseController reach the wrapped writer for deadlines.
func (b *bufferedResponse) Unwrap() http.ResponseWriter {
	return b.ResponseWriter
}

func (b *bufferedResponse) flush() {
	status := b.status
	if status == 0 {
		status = http.StatusOK
	}
	b.ResponseWriter.WriteHeader(status)
	if b.body.Len() > 0 {
		_, _ = b.ResponseWriter.Write(b.body.Bytes())
	}
}
