// Package keystore owns the process-wide HMAC signing key used for session tokens.
//
// # Lifecycle
//
// A [Store] is created with a [Settings] backend and started once during
// server startup. Start either decodes the persisted key or generates and
// persists a new one. Stop discards the key from memory. Between Start and
// Stop the key is read-only and safe for concurrent use without locking.
//
// Changing the persisted key while the process is stopped invalidates every
// outstanding token on its next decode. That is the designed revocation
// mechanism; there is no rotation while running.
//
// # What this package must NOT do
//
//   - Sign or parse tokens (that belongs to package jwt).
//   - Expose a package-level key singleton.
package keystore
