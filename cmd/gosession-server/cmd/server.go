package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/keystore"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/MrEthical07/goSession/userstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	demoLogin    = "admin"
	demoPassword = "admin-password"
)

// app wires the engine and its backends into one HTTP handler.
type app struct {
	engine      *goSession.Engine
	keys        *keystore.Store
	users       *userstore.Memory
	cache       *userstore.Cache
	credentials map[string][]byte
	dummyHash   []byte
	logger      *slog.Logger
	handler     http.Handler
	closers     []func()
}

func newApp(ctx context.Context, cfg serverConfig, v *viper.Viper, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger, credentials: make(map[string][]byte)}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// -------- REDIS --------
	addr := cfg.Redis.Addr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		a.closers = append(a.closers, mr.Close)
		addr = mr.Addr()
		logger.Info("using in-process redis", "addr", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	a.closers = append(a.closers, func() { _ = client.Close() })

	// -------- SIGNING KEY --------
	var settings keystore.Settings
	switch cfg.Settings.Backend {
	case "", "redis":
		settings = keystore.NewRedisSettings(client, engineCfg.Session.RedisPrefix+":settings")
	case "config":
		settings = newViperSettings(v, logger)
	default:
		return nil, fmt.Errorf("settings.backend: unknown backend %q", cfg.Settings.Backend)
	}
	keys, err := keystore.New(settings)
	if err != nil {
		return nil, err
	}
	if err := keys.Start(ctx); err != nil {
		return nil, fmt.Errorf("start key store: %w", err)
	}
	a.keys = keys
	a.closers = append(a.closers, keys.Stop)

	// -------- USERS --------
	a.users = userstore.NewMemory()
	credentials := cfg.Users
	if len(credentials) == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash demo password: %w", err)
		}
		credentials = map[string]string{demoLogin: string(hash)}
		logger.Warn("no users configured, seeding demo user", "login", demoLogin)
	}
	logins := make([]string, 0, len(credentials))
	for login := range credentials {
		logins = append(logins, login)
	}
	sort.Strings(logins)
	for _, login := range logins {
		if _, err := a.users.Add(login); err != nil {
			return nil, err
		}
		a.credentials[login] = []byte(credentials[login])
	}

	a.dummyHash, err = bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}

	a.cache, err = userstore.NewCache(a.users, client, userstore.CacheConfig{
		Prefix: engineCfg.Session.RedisPrefix + ":user",
		TTL:    cfg.UserCache.TTL,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	// -------- ENGINE --------
	a.engine, err = goSession.New().
		WithConfig(engineCfg).
		WithKeySource(keys).
		WithUserProvider(a.cache).
		WithRedis(client).
		WithAuditSink(goSession.NewSlogSink(logger.With("component", "audit"))).
		WithLogger(logger).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.closers = append(a.closers, a.engine.Close)

	a.handler = a.routes(engineCfg.Cookie.ContextPath)
	ok = true
	return a, nil
}

// Close releases backends in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) routes(contextPath string) http.Handler {
	mux := http.NewServeMux()
	requireSession := middleware.RequireSession
	requireCSRF := middleware.RequireCSRF(a.engine)

	mux.HandleFunc("POST "+contextPath+"/sessions/login", a.handleLogin)
	mux.HandleFunc("POST "+contextPath+"/sessions/logout", a.handleLogout)
	mux.Handle("POST "+contextPath+"/sessions/logout_all", requireCSRF(http.HandlerFunc(a.handleLogoutAll)))
	mux.Handle("GET "+contextPath+"/api/me", requireSession(http.HandlerFunc(a.handleMe)))
	mux.Handle("POST "+contextPath+"/issues/bulk_change", requireSession(http.HandlerFunc(a.handleBulkChange)))
	mux.Handle("GET /metrics", promexport.NewPrometheusExporter(a.engine).Handler())

	var h http.Handler = mux
	h = middleware.ValidationFilter(a.engine)(h)
	h = middleware.LoginFilter(a.engine, nil)(h)
	return h
}

func (a *app) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}
	login := r.PostForm.Get("login")
	hash, known := a.credentials[login]
	if !known {
		// Spend the same time on unknown logins.
		hash = a.dummyHash
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(r.PostForm.Get("password"))); err != nil || !known {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	middleware.SetLogin(r, login)
	writeJSON(w, http.StatusOK, map[string]string{"login": login})
}

func (a *app) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Logout(r.Context(), w, r); err != nil {
		a.logger.ErrorContext(r.Context(), "logout failed", "error", err)
		a.engine.RemoveSession(w, r)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.ResultFromContext(r.Context())
	if err := a.engine.LogoutAll(r.Context(), res.User.Login); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, goSession.ErrRevocationDisabled) {
			status = http.StatusNotImplemented
		}
		a.logger.ErrorContext(r.Context(), "logout all failed", "error", err)
		w.WriteHeader(status)
		return
	}
	a.engine.RemoveSession(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (a *app) handleMe(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.ResultFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        res.User.ID,
		"login":     res.User.Login,
		"refreshed": res.Refreshed,
	})
}

func (a *app) handleBulkChange(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.ResultFromContext(r.Context())
	a.logger.InfoContext(r.Context(), "bulk change accepted", "login", res.User.Login)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
