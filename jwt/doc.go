// Package jwt encodes, decodes and refreshes HS256-signed session tokens.
//
// # Decode outcomes
//
// [Codec.Decode] distinguishes three outcomes:
//
//   - a valid token yields its [Claims];
//   - a token whose signature does not verify, or which has expired, is
//     absent (ok == false, err == nil). This is the normal result of expiry
//     or of a changed signing key and is not an error;
//   - a token that cannot be parsed, or that lacks one of the required claims
//     (jti, sub, exp, iat), yields a [*MalformedTokenError].
//
// # What this package must NOT do
//
//   - Read cookies or touch HTTP state.
//   - Own the signing key (it is borrowed from a [KeySource] on every call).
package jwt
