package userstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/redis/go-redis/v9"
)

const (
	userRecordVersionV1 = 1

	defaultCacheTTL = time.Minute
)

// ErrCacheUnavailable wraps Redis failures returned by [Cache.Invalidate].
var ErrCacheUnavailable = errors.New("user cache unavailable")

// CacheConfig configures a [Cache].
type CacheConfig struct {
	// Prefix is the Redis key namespace. Defaults to "gs:user".
	Prefix string
	// TTL bounds how long a cached user is trusted. Defaults to one minute.
	TTL    time.Duration
	Logger *slog.Logger
}

// Cache is a read-through Redis cache in front of another provider.
type Cache struct {
	backend goSession.UserProvider
	redis   redis.UniversalClient
	prefix  string
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCache wraps backend.
func NewCache(backend goSession.UserProvider, client redis.UniversalClient, cfg CacheConfig) (*Cache, error) {
	if backend == nil {
		return nil, errors.New("user cache requires a backing provider")
	}
	if client == nil {
		return nil, errors.New("user cache requires a redis client")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "gs:user"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Cache{
		backend: backend,
		redis:   client,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
	}, nil
}

func (c *Cache) key(login string) string {
	return c.prefix + ":" + login
}

// GetActiveUserByLogin implements [goSession.UserProvider].
//
//	Performance: 1 Redis GET on a hit; GET + backend lookup + SET on a miss.
func (c *Cache) GetActiveUserByLogin(ctx context.Context, login string) (*goSession.User, error) {
	data, err := c.redis.Get(ctx, c.key(login)).Bytes()
	switch {
	case err == nil:
		u, derr := decodeUserRecord(data)
		if derr == nil && u.Login == login {
			return u, nil
		}
		c.logger.WarnContext(ctx, "discard corrupt cached user", "login", login, "error", derr)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "user cache read failed", "error", err)
	}

	u, err := c.backend.GetActiveUserByLogin(ctx, login)
	if err != nil || u == nil || !u.Active {
		return u, err
	}

	encoded, err := encodeUserRecord(u)
	if err != nil {
		return u, nil
	}
	if err := c.redis.Set(ctx, c.key(login), encoded, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "user cache write failed", "error", err)
	}
	return u, nil
}

// Invalidate drops the cached record of login. Call it after deactivating
// or renaming a user.
func (c *Cache) Invalidate(ctx context.Context, login string) error {
	if err := c.redis.Del(ctx, c.key(login)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func encodeUserRecord(u *goSession.User) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(userRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, u.ID); err != nil {
		return nil, err
	}

	if len(u.Login) > 65535 {
		return nil, errors.New("user record login too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(u.Login))); err != nil {
		return nil, err
	}
	buf.WriteString(u.Login)

	return buf.Bytes(), nil
}

func decodeUserRecord(data []byte) (*goSession.User, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != userRecordVersionV1 {
		return nil, errors.New("invalid user record version")
	}

	u := &goSession.User{Active: true}
	if err := binary.Read(reader, binary.BigEndian, &u.ID); err != nil {
		return nil, err
	}

	var loginLen uint16
	if err := binary.Read(reader, binary.BigEndian, &loginLen); err != nil {
		return nil, err
	}
	login := make([]byte, loginLen)
	if _, err := io.ReadFull(reader, login); err != nil {
		return nil, err
	}
	u.Login = string(login)

	return u, nil
}
