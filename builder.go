package goSession

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. It is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	keys         KeySource
	userProvider UserProvider
	revoker      Revoker
	bridge       SessionBridge
	auditSink    AuditSink
	logger       *slog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithKeySource sets the signing key source, normally a started *keystore.Store.
func (b *Builder) WithKeySource(keys KeySource) *Builder {
	b.keys = keys
	return b
}

// WithUserProvider sets the active-user lookup. Required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithRedis enables revocation backed by a Redis revocation list under
// Config.Session.RedisPrefix. It is ignored when [Builder.WithRevoker] is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRevoker sets a custom revocation list.
func (b *Builder) WithRevoker(r Revoker) *Builder {
	b.revoker = r
	return b
}

// WithSessionBridge sets where the legacy user id attribute is written.
// Defaults to [ContextBridge].
func (b *Builder) WithSessionBridge(bridge SessionBridge) *Builder {
	b.bridge = bridge
	return b
}

// WithAuditSink sets where session events go. Events are only dispatched
// when Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. Defaults to [slog.Default].
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the ValidateSession latency histogram. It has
// no effect unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.keys == nil {
		return nil, errors.New("key source required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	codec, err := jwt.NewCodec(jwt.Config{
		Keys:   b.keys,
		Leeway: cfg.Session.Leeway,
		Now:    now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:         cloneConfig(cfg),
		codec:          codec,
		users:          b.userProvider,
		bridge:         b.bridge,
		logger:         b.logger,
		now:            now,
		newState:       internal.NewCSRFState,
		protectedPaths: protectedPathSet(cfg.CSRF.ProtectedPaths),
	}

	// -------- REVOCATION --------
	switch {
	case b.revoker != nil:
		engine.revoker = b.revoker
	case b.redis != nil:
		engine.revoker = session.NewStore(b.redis, cfg.Session.RedisPrefix)
	}

	if engine.bridge == nil {
		engine.bridge = ContextBridge{}
	}
	if engine.logger == nil {
		engine.logger = slog.Default()
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
