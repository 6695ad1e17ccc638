package keystore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

// DefaultSettingKey is the setting under which the encoded key is persisted.
const DefaultSettingKey = "gosession.secretKey"

// KeySize is the length of generated HS256 keys in bytes.
const KeySize = 32

var (
	// ErrKeyNotLoaded is returned by [Store.Key] before Start or after Stop.
	ErrKeyNotLoaded = errors.New("secret key not loaded")
	// ErrKeyGeneration is returned when the random source cannot produce a key.
	ErrKeyGeneration = errors.New("secret key generation failed")
	// ErrKeyDecode is returned when the persisted key is not valid base64.
	ErrKeyDecode = errors.New("secret key decode failed")
	// ErrSettingsUnavailable wraps failures of the settings backend.
	ErrSettingsUnavailable = errors.New("settings backend unavailable")
)

// Settings is the process configuration the key is persisted in.
//
// Get returns ("", nil) when the setting is absent.
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Store holds the signing key between Start and Stop.
type Store struct {
	settings   Settings
	settingKey string
	random     io.Reader
	key        atomic.Pointer[[]byte]
}

// Option configures a [Store].
type Option func(*Store)

// WithSettingKey overrides [DefaultSettingKey].
func WithSettingKey(key string) Option {
	return func(s *Store) {
		if strings.TrimSpace(key) != "" {
			s.settingKey = key
		}
	}
}

// WithRandom replaces the random source used for key generation.
func WithRandom(r io.Reader) Option {
	return func(s *Store) {
		if r != nil {
			s.random = r
		}
	}
}

// New returns a stopped Store backed by settings.
func New(settings Settings, opts ...Option) (*Store, error) {
	if settings == nil {
		return nil, errors.New("keystore requires settings")
	}
	s := &Store{
		settings:   settings,
		settingKey: DefaultSettingKey,
		random:     rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start loads the persisted key, generating and persisting one when absent.
func (s *Store) Start(ctx context.Context) error {
	encoded, err := s.settings.Get(ctx, s.settingKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSettingsUnavailable, err)
	}

	if strings.TrimSpace(encoded) == "" {
		key := make([]byte, KeySize)
		if _, err := io.ReadFull(s.random, key); err != nil {
			return fmt.Errorf("%w: %v", ErrKeyGeneration, err)
		}
		err := s.settings.Set(ctx, s.settingKey, base64.StdEncoding.EncodeToString(key))
		if err == nil {
			s.key.Store(&key)
			return nil
		}
		if !errors.Is(err, ErrSettingConflict) {
			return fmt.Errorf("%w: %v", ErrSettingsUnavailable, err)
		}
		// lost the race to another node; adopt its key
		encoded, err = s.settings.Get(ctx, s.settingKey)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSettingsUnavailable, err)
		}
	}

	return s.load(encoded)
}

func (s *Store) load(encoded string) error {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyDecode, err)
	}
	if len(key) == 0 {
		return fmt.Errorf("%w: empty key", ErrKeyDecode)
	}
	s.key.Store(&key)
	return nil
}

// Stop discards the key from memory.
func (s *Store) Stop() {
	if s == nil {
		return
	}
	s.key.Store(nil)
}

// Key returns the loaded key. The returned slice must not be modified.
func (s *Store) Key() ([]byte, error) {
	if s == nil {
		return nil, ErrKeyNotLoaded
	}
	key := s.key.Load()
	if key == nil {
		return nil, ErrKeyNotLoaded
	}
	return *key, nil
}

// Started reports whether a key is currently held.
func (s *Store) Started() bool {
	return s != nil && s.key.Load() != nil
}
