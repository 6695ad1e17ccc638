package jwt

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/keystore"
	gjwt "github.com/golang-jwt/jwt/v5"
)

type staticKey []byte

func (k staticKey) Key() ([]byte, error) { return k, nil }

var testKey = staticKey(bytes.Repeat([]byte{0x42}, 32))

func newTestCodec(t *testing.T, keys KeySource, now func() time.Time) *Codec {
	t.Helper()
	c, err := NewCodec(Config{Keys: keys, Now: now})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func signRaw(t *testing.T, claims gjwt.MapClaims) string {
	t.Helper()
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestNewCodecValidation(t *testing.T) {
	if _, err := NewCodec(Config{}); err == nil {
		t.Fatal("expected missing key source to fail")
	}
	if _, err := NewCodec(Config{Keys: testKey, Leeway: -time.Second}); err == nil {
		t.Fatal("expected negative leeway to fail")
	}
	if _, err := NewCodec(Config{Keys: testKey, Leeway: time.Hour}); err == nil {
		t.Fatal("expected oversized leeway to fail")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newTestCodec(t, testKey, nil)

	token, err := c.Encode(Session{
		Subject: "john",
		TTL:     10 * time.Minute,
		Properties: map[string]any{
			"xsrfToken":       "state-1",
			"lastRefreshTime": int64(1700000000123),
		},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	claims, ok, err := c.Decode(token)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if claims.Subject != "john" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.ID == "" {
		t.Fatal("expected token id")
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Fatalf("expiration %v must be after issuance %v", claims.ExpiresAt, claims.IssuedAt)
	}
	if s, _ := claims.String("xsrfToken"); s != "state-1" {
		t.Fatalf("unexpected xsrf property %q", s)
	}
	if n, ok := claims.Int64("lastRefreshTime"); !ok || n != 1700000000123 {
		t.Fatalf("unexpected lastRefreshTime %d (%v)", n, ok)
	}
	if len(claims.Properties) != 2 {
		t.Fatalf("expected only custom properties, got %v", claims.Properties)
	}
}

func TestEncodeGeneratesUniqueIDs(t *testing.T) {
	c := newTestCodec(t, testKey, nil)
	a, _ := c.Encode(Session{Subject: "john", TTL: time.Minute})
	b, _ := c.Encode(Session{Subject: "john", TTL: time.Minute})
	ca, _, _ := c.Decode(a)
	cb, _, _ := c.Decode(b)
	if ca.ID == cb.ID {
		t.Fatal("expected distinct token ids")
	}
}

func TestEncodeRejectsInvalidInput(t *testing.T) {
	c := newTestCodec(t, testKey, nil)
	if _, err := c.Encode(Session{TTL: time.Minute}); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
	_, err := c.Encode(Session{Subject: "john", TTL: time.Minute, Properties: map[string]any{"sub": "mallory"}})
	if !errors.Is(err, ErrReservedProperty) {
		t.Fatalf("expected ErrReservedProperty, got %v", err)
	}
}

func TestDecodeExpiredIsAbsent(t *testing.T) {
	c := newTestCodec(t, testKey, nil)

	for _, ttl := range []time.Duration{0, -time.Minute} {
		token, err := c.Encode(Session{Subject: "john", TTL: ttl})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		claims, ok, err := c.Decode(token)
		if err != nil || ok || claims != nil {
			t.Fatalf("ttl %v: expected absent, got ok=%v err=%v", ttl, ok, err)
		}
	}

	past := time.Now().Add(-time.Hour)
	manual := signRaw(t, gjwt.MapClaims{
		"jti": "id", "sub": "john",
		"iat": past.Add(-time.Hour).Unix(), "exp": past.Unix(),
	})
	if _, ok, err := c.Decode(manual); ok || err != nil {
		t.Fatalf("expected manually expired token to be absent, ok=%v err=%v", ok, err)
	}
}

func TestDecodeTamperedSignatureIsAbsent(t *testing.T) {
	c := newTestCodec(t, testKey, nil)
	token, err := c.Encode(Session{Subject: "john", TTL: time.Hour})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	sigStart := strings.LastIndex(token, ".") + 1
	alphabet := "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	for i := sigStart; i < len(token); i++ {
		for _, replacement := range []byte{alphabet[(strings.IndexByte(alphabet, token[i])+1)%len(alphabet)], '!'} {
			tampered := token[:i] + string(replacement) + token[i+1:]
			claims, ok, err := c.Decode(tampered)
			if err != nil || ok || claims != nil {
				t.Fatalf("byte %d -> %q: expected absent, got ok=%v err=%v", i, replacement, ok, err)
			}
		}
	}
}

func TestDecodeLastSignatureCharacterIsAbsent(t *testing.T) {
	c := newTestCodec(t, testKey, nil)
	alphabet := "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	for n := 0; n < 20; n++ {
		token, err := c.Encode(Session{Subject: "john", TTL: time.Hour})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		last := len(token) - 1
		for i := 0; i < len(alphabet); i++ {
			if alphabet[i] == token[last] {
				continue
			}
			tampered := token[:last] + string(alphabet[i]) + token[last+1:]
			claims, ok, err := c.Decode(tampered)
			if err != nil || ok || claims != nil {
				t.Fatalf("%q -> %q: expected absent, got ok=%v err=%v", token[last], alphabet[i], ok, err)
			}
		}
	}
}

func TestDecodeWrongKeyIsAbsent(t *testing.T) {
	c := newTestCodec(t, testKey, nil)
	other := newTestCodec(t, staticKey(bytes.Repeat([]byte{0x01}, 32)), nil)

	token, _ := other.Encode(Session{Subject: "john", TTL: time.Hour})
	if _, ok, err := c.Decode(token); ok || err != nil {
		t.Fatalf("expected absent, ok=%v err=%v", ok, err)
	}
}

func TestDecodeWrongAlgorithmIsAbsent(t *testing.T) {
	c := newTestCodec(t, testKey, nil)
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, gjwt.MapClaims{
		"jti": "id", "sub": "john",
		"iat": time.Now().Unix(), "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, ok, err := c.Decode(tok); ok || err != nil {
		t.Fatalf("expected absent, ok=%v err=%v", ok, err)
	}
}

func TestDecodeMissingRequiredClaims(t *testing.T) {
	c := newTestCodec(t, testKey, nil)
	now := time.Now()
	full := func() gjwt.MapClaims {
		return gjwt.MapClaims{
			"jti": "id",
			"sub": "john",
			"iat": now.Unix(),
			"exp": now.Add(time.Hour).Unix(),
		}
	}

	cases := []struct {
		field   string
		message string
	}{
		{field: "jti", message: "token id"},
		{field: "sub", message: "token subject"},
		{field: "exp", message: "token expiration date"},
		{field: "iat", message: "token creation date"},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			claims := full()
			delete(claims, tc.field)

			_, ok, err := c.Decode(signRaw(t, claims))
			if ok {
				t.Fatal("expected decode failure")
			}
			var malformed *MalformedTokenError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedTokenError, got %v", err)
			}
			if malformed.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, malformed.Field)
			}
			if !errors.Is(err, ErrMalformedToken) {
				t.Fatal("expected error to wrap ErrMalformedToken")
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("message %q does not name %q", err.Error(), tc.message)
			}
		})
	}
}

func TestDecodeUnparseablePayload(t *testing.T) {
	c := newTestCodec(t, testKey, nil)
	for _, input := range []string{"", "not-a-token", "a.b", "a.b.c.d", "eyJhbGciOiJIUzI1NiJ9.bm90LWpzb24.c2ln"} {
		_, ok, err := c.Decode(input)
		if ok {
			t.Fatalf("%q: unexpected success", input)
		}
		var malformed *MalformedTokenError
		if !errors.As(err, &malformed) {
			t.Fatalf("%q: expected MalformedTokenError, got %v", input, err)
		}
		if malformed.Err == nil {
			t.Fatalf("%q: expected wrapped parse error", input)
		}
	}
}

func TestRefreshPreservesPayload(t *testing.T) {
	base := time.Now()
	clock := base
	c := newTestCodec(t, testKey, func() time.Time { return clock })

	token, err := c.Encode(Session{
		Subject:    "john",
		TTL:        time.Minute,
		Properties: map[string]any{"xsrfToken": "state-1", "custom": "value"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	original, _, err := c.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	clock = base.Add(2 * time.Second)
	ttl2 := 3 * time.Hour
	refreshed, err := c.Refresh(original, ttl2)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed == token {
		t.Fatal("expected refreshed token to differ")
	}

	got, ok, err := c.Decode(refreshed)
	if err != nil || !ok {
		t.Fatalf("decode refreshed: ok=%v err=%v", ok, err)
	}
	if got.Subject != original.Subject || got.ID != original.ID {
		t.Fatalf("identity changed: %+v vs %+v", got, original)
	}
	if !got.IssuedAt.Equal(original.IssuedAt) {
		t.Fatalf("issuedAt changed: %v vs %v", got.IssuedAt, original.IssuedAt)
	}
	for k, v := range original.Properties {
		if got.Properties[k] != v {
			t.Fatalf("property %q changed: %v vs %v", k, got.Properties[k], v)
		}
	}
	if got.ExpiresAt.Before(clock.Add(ttl2).Add(-time.Second)) {
		t.Fatalf("expiration %v earlier than expected %v", got.ExpiresAt, clock.Add(ttl2))
	}
}

func TestKeyRotationInvalidatesTokens(t *testing.T) {
	ctx := context.Background()
	settings := keystore.NewMemorySettings(nil)
	store, err := keystore.New(settings)
	if err != nil {
		t.Fatalf("keystore: %v", err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	c := newTestCodec(t, store, nil)

	token, err := c.Encode(Session{Subject: "john", TTL: time.Hour})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, ok, _ := c.Decode(token); !ok {
		t.Fatal("expected token to decode under K1")
	}

	store.Stop()
	if _, _, err := c.Decode(token); !errors.Is(err, ErrKeyUnavailable) {
		t.Fatalf("expected ErrKeyUnavailable while stopped, got %v", err)
	}

	k2 := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{9}, keystore.KeySize))
	if err := settings.Set(ctx, keystore.DefaultSettingKey, k2); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}

	claims, ok, err := c.Decode(token)
	if err != nil || ok || claims != nil {
		t.Fatalf("expected absent under K2, ok=%v err=%v", ok, err)
	}
}

func FuzzDecode(f *testing.F) {
	c, err := NewCodec(Config{Keys: testKey})
	if err != nil {
		f.Fatal(err)
	}
	valid, err := c.Encode(Session{Subject: "fuzz", TTL: time.Hour, Properties: map[string]any{"xsrfToken": "s"}})
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJzdWIiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, ok, err := c.Decode(input)
		if ok && (claims == nil || err != nil) {
			t.Fatal("ok decode must return claims and no error")
		}
		if !ok && claims != nil {
			t.Fatal("failed decode must not return claims")
		}
	})
}
