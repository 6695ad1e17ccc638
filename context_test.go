package goSession

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestAttributesRoundTrip(t *testing.T) {
	ctx, attrs := WithAttributes(context.Background())
	again, same := WithAttributes(ctx)
	if same != attrs || again != ctx {
		t.Fatal("WithAttributes must reuse an existing bag")
	}

	attrs.Set("user_id", int64(7))
	if v, ok := AttributesFromContext(ctx).Get("user_id"); !ok || v != int64(7) {
		t.Fatalf("unexpected value %v", v)
	}
	attrs.Remove("user_id")
	if _, ok := attrs.Get("user_id"); ok {
		t.Fatal("expected attribute removed")
	}
}

func TestContextBridgeWithoutAttributesIsNoOp(t *testing.T) {
	var bridge ContextBridge
	bridge.SetAttribute(context.Background(), "user_id", int64(1))
	bridge.RemoveAttribute(context.Background(), "user_id")

	var nilAttrs *Attributes
	if _, ok := nilAttrs.Get("user_id"); ok {
		t.Fatal("nil bag must be empty")
	}
}

func TestDefaultBridgeWritesRequestAttributes(t *testing.T) {
	clock := newTestClock()
	users := newStubUsers()
	engine, err := New().
		WithKeySource(newTestKeys(t)).
		WithUserProvider(users).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	env := &testEnv{engine: engine, clock: clock, users: users}
	cookies := env.login(t, "john")
	clock.Advance(time.Minute)

	ctx, attrs := WithAttributes(context.Background())
	req := newRequest(http.MethodGet, "/projects", cookies).WithContext(ctx)
	if _, _, err := env.validate(t, req); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v, ok := attrs.Get("user_id"); !ok || v != int64(42) {
		t.Fatalf("expected user_id 42, got %v", v)
	}

	users.set("john", nil)
	if _, _, err := env.validate(t, req); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, ok := attrs.Get("user_id"); ok {
		t.Fatal("expected user_id removed with the session")
	}
}
