package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/keystore"
	"github.com/spf13/viper"
)

// InitViper points the global viper at the config file and GOSESSION_
// environment variables. When configFile is empty the standard locations are
// searched; a missing file is not an error.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		viper.SetConfigName("gosession")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GOSESSION")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())
}

func findConfigFile() string {
	home, _ := os.UserHomeDir()
	for _, dir := range []string{".", filepath.Join(home, ".gosession"), "/etc/gosession"} {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "gosession"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	def := goSession.DefaultConfig()

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.context_path", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.prefix", def.Session.RedisPrefix)
	v.SetDefault("settings.backend", "redis")
	v.SetDefault("session.timeout", def.Session.Timeout)
	v.SetDefault("session.disconnect_timeout", def.Session.DisconnectTimeout)
	v.SetDefault("session.refresh_interval", def.Session.RefreshInterval)
	v.SetDefault("cookie.secure", "auto")
	v.SetDefault("cookie.domain", "")
	v.SetDefault("csrf.enabled", def.CSRF.Enabled)
	v.SetDefault("csrf.protected_paths", def.CSRF.ProtectedPaths)
	v.SetDefault("user_cache.ttl", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.latency", true)
	v.SetDefault("audit.enabled", true)
}

type serverConfig struct {
	Server    httpSection    `mapstructure:"server"`
	Redis     redisSection   `mapstructure:"redis"`
	Settings  settingSection `mapstructure:"settings"`
	Session   sessionSection `mapstructure:"session"`
	Cookie    cookieSection  `mapstructure:"cookie"`
	CSRF      csrfSection    `mapstructure:"csrf"`
	UserCache cacheSection   `mapstructure:"user_cache"`
	Log       logSection     `mapstructure:"log"`
	Metrics   metricsSection `mapstructure:"metrics"`
	Audit     auditSection   `mapstructure:"audit"`
	// Users maps a login to its bcrypt password hash. Viper lowercases keys,
	// so logins are case-insensitive here.
	Users map[string]string `mapstructure:"users"`
}

type httpSection struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ContextPath     string        `mapstructure:"context_path"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type redisSection struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

type settingSection struct {
	// Backend is "redis" (shared by every node) or "config" (written back
	// to the config file).
	Backend string `mapstructure:"backend"`
}

type sessionSection struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	DisconnectTimeout time.Duration `mapstructure:"disconnect_timeout"`
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
}

type cookieSection struct {
	Secure string `mapstructure:"secure"`
	Domain string `mapstructure:"domain"`
}

type csrfSection struct {
	Enabled        bool     `mapstructure:"enabled"`
	ProtectedPaths []string `mapstructure:"protected_paths"`
}

type cacheSection struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type logSection struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type metricsSection struct {
	Enabled bool `mapstructure:"enabled"`
	Latency bool `mapstructure:"latency"`
}

type auditSection struct {
	Enabled bool `mapstructure:"enabled"`
}

// loadConfig reads v into a serverConfig. A missing config file is fine;
// defaults and environment variables still apply.
func loadConfig(v *viper.Viper) (serverConfig, error) {
	var cfg serverConfig
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// engineConfig maps the file layout onto goSession.Config and validates it.
func (c serverConfig) engineConfig() (goSession.Config, error) {
	cfg := goSession.DefaultConfig()
	if c.Session.Timeout > 0 {
		cfg.Session.Timeout = c.Session.Timeout
	}
	if c.Session.DisconnectTimeout > 0 {
		cfg.Session.DisconnectTimeout = c.Session.DisconnectTimeout
	}
	if c.Session.RefreshInterval > 0 {
		cfg.Session.RefreshInterval = c.Session.RefreshInterval
	}
	if c.Redis.Prefix != "" {
		cfg.Session.RedisPrefix = c.Redis.Prefix
	}
	cfg.Cookie.ContextPath = strings.TrimSuffix(c.Server.ContextPath, "/")
	cfg.Cookie.Domain = c.Cookie.Domain

	switch strings.ToLower(c.Cookie.Secure) {
	case "", "auto":
		cfg.Cookie.Secure = goSession.CookieSecureAuto
	case "always":
		cfg.Cookie.Secure = goSession.CookieSecureAlways
	case "never":
		cfg.Cookie.Secure = goSession.CookieSecureNever
	default:
		return cfg, fmt.Errorf("cookie.secure: unknown mode %q", c.Cookie.Secure)
	}

	cfg.CSRF.Enabled = c.CSRF.Enabled
	if len(c.CSRF.ProtectedPaths) > 0 {
		cfg.CSRF.ProtectedPaths = append([]string(nil), c.CSRF.ProtectedPaths...)
	}
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Latency

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format: unknown format %q", format)
	}
}

// viperSettings persists keystore settings in the config file, so a single
// node keeps its signing key across restarts.
type viperSettings struct {
	mu     sync.Mutex
	v      *viper.Viper
	logger *slog.Logger
}

var _ keystore.Settings = (*viperSettings)(nil)

func newViperSettings(v *viper.Viper, logger *slog.Logger) *viperSettings {
	return &viperSettings{v: v, logger: logger}
}

func settingPath(key string) string {
	return "settings.values." + strings.ToLower(strings.ReplaceAll(key, ".", "_"))
}

func (s *viperSettings) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.GetString(settingPath(key)), nil
}

func (s *viperSettings) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := settingPath(key)
	if cur := s.v.GetString(path); cur != "" && cur != value {
		return keystore.ErrSettingConflict
	}
	s.v.Set(path, value)

	if s.v.ConfigFileUsed() == "" {
		s.logger.Warn("no config file in use, setting kept in memory only", "setting", key)
		return nil
	}
	if err := s.v.WriteConfig(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
