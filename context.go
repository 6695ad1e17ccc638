package goSession

import (
	"context"
	"sync"
)

type clientIPContextKey struct{}
type attributesContextKey struct{}

// WithClientIP attaches the caller’s IP address to ctx. The Engine copies it
// into audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// Attributes is a request-scoped attribute bag, the in-process stand-in for
// a server-side session. It is safe for concurrent use.
type Attributes struct {
	mu     sync.RWMutex
	values map[string]any
}

// WithAttributes attaches a fresh [Attributes] bag to ctx. If ctx already
// carries one it is returned unchanged.
func WithAttributes(ctx context.Context) (context.Context, *Attributes) {
	if attrs := AttributesFromContext(ctx); attrs != nil {
		return ctx, attrs
	}
	attrs := &Attributes{values: make(map[string]any)}
	return context.WithValue(ctx, attributesContextKey{}, attrs), attrs
}

// AttributesFromContext returns the bag attached by [WithAttributes], or nil.
func AttributesFromContext(ctx context.Context) *Attributes {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(attributesContextKey{}).(*Attributes)
	return attrs
}

// Get returns the value stored under name.
func (a *Attributes) Get(name string) (any, bool) {
	if a == nil {
		return nil, false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.values[name]
	return v, ok
}

// Set stores value under name.
func (a *Attributes) Set(name string, value any) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.values[name] = value
	a.mu.Unlock()
}

// Remove deletes name.
func (a *Attributes) Remove(name string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	delete(a.values, name)
	a.mu.Unlock()
}

// ContextBridge is the default [SessionBridge]. It writes into the
// [Attributes] carried by the request context and does nothing when the
// context has none.
type ContextBridge struct{}

func (ContextBridge) SetAttribute(ctx context.Context, name string, value any) {
	AttributesFromContext(ctx).Set(name, value)
}

func (ContextBridge) RemoveAttribute(ctx context.Context, name string) {
	AttributesFromContext(ctx).Remove(name)
}
