package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis failure returned by [Store].
var ErrRedisUnavailable = errors.New("redis unavailable")

// minRevocationTTL keeps a just-expiring token revoked across clock skew between nodes.
const minRevocationTTL = time.Second

// Store is a Redis-backed revocation list.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a revocation [Store]. prefix sets the Redis key namespace
// and defaults to "gs".
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "gs"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) tokenKey(tokenID string) string {
	return s.prefix + ":revoked:" + tokenID
}

func (s *Store) subjectKey(subject string) string {
	return s.prefix + ":cutoff:" + subject
}

// Revoke denylists tokenID until expiresAt.
//
//	Performance: 1 Redis SET.
func (s *Store) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return errors.New("token id is required")
	}
	ttl := time.Until(expiresAt)
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}
	if err := s.redis.Set(ctx, s.tokenKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RevokeSubject revokes every token of subject created at or before at. The
// cut-off is kept for retention, which should be the disconnect ceiling: no
// older token can still be accepted after that.
//
//	Performance: 1 Redis SET.
func (s *Store) RevokeSubject(ctx context.Context, subject string, at time.Time, retention time.Duration) error {
	if subject == "" {
		return errors.New("subject is required")
	}
	if retention < minRevocationTTL {
		retention = minRevocationTTL
	}
	value := strconv.FormatInt(at.Unix(), 10)
	if err := s.redis.Set(ctx, s.subjectKey(subject), value, retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether the token identified by tokenID, belonging to
// subject and created at issuedAt, has been revoked. The two keys live in
// different hash slots, so they are read with single-key GETs.
//
//	Performance: 2 Redis GETs in one pipeline.
func (s *Store) IsRevoked(ctx context.Context, tokenID, subject string, issuedAt time.Time) (bool, error) {
	var revoked, cutoff *redis.StringCmd
	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		revoked = pipe.Get(ctx, s.tokenKey(tokenID))
		cutoff = pipe.Get(ctx, s.subjectKey(subject))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch err := revoked.Err(); {
	case err == nil:
		return true, nil
	case !errors.Is(err, redis.Nil):
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	raw, err := cutoff.Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	at, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// a corrupt cut-off fails closed
		return true, nil
	}
	return issuedAt.Unix() <= at, nil
}

// Ping measures round-trip latency to Redis.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
