package keystore

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// MemorySettings is an in-process [Settings] implementation.
type MemorySettings struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemorySettings returns settings pre-populated with initial.
func NewMemorySettings(initial map[string]string) *MemorySettings {
	values := make(map[string]string, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &MemorySettings{values: values}
}

func (m *MemorySettings) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *MemorySettings) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// RedisSettings persists settings as plain Redis strings under a prefix, so
// every node of a cluster shares one signing key.
type RedisSettings struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisSettings returns Redis-backed settings. An empty prefix defaults to "gs:settings".
func NewRedisSettings(client redis.UniversalClient, prefix string) *RedisSettings {
	if prefix == "" {
		prefix = "gs:settings"
	}
	return &RedisSettings{redis: client, prefix: prefix}
}

func (r *RedisSettings) key(name string) string {
	return r.prefix + ":" + name
}

func (r *RedisSettings) Get(ctx context.Context, key string) (string, error) {
	v, err := r.redis.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

// Set only writes when the key is absent; a concurrent first start on another
// node wins and this node adopts its value on the next Get.
func (r *RedisSettings) Set(ctx context.Context, key, value string) error {
	ok, err := r.redis.SetNX(ctx, r.key(key), value, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSettingConflict
	}
	return nil
}

// ErrSettingConflict is returned by [RedisSettings.Set] when another writer
// persisted the setting first.
var ErrSettingConflict = errors.New("setting already persisted by another writer")
