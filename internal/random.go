package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"io"
	"strings"
)

// csrfStateSize gives 136 bits of entropy, above the 130 the state needs.
const csrfStateSize = 17

var stateEncoding = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

// NewCSRFState returns a random lowercase base32 state string.
func NewCSRFState() (string, error) {
	return NewCSRFStateFrom(rand.Reader)
}

// NewCSRFStateFrom reads the state entropy from r.
func NewCSRFStateFrom(r io.Reader) (string, error) {
	var raw [csrfStateSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return "", err
	}
	return stateEncoding.EncodeToString(raw[:]), nil
}

// HashCSRFState returns the lowercase hex SHA-256 of state. This is the value
// clients see in the CSRF cookie and must echo in the header.
func HashCSRFState(state string) string {
	sum := sha256.Sum256([]byte(state))
	return hex.EncodeToString(sum[:])
}

// CSRFHeaderMatches compares the header value against the hash of state in
// constant time. A blank header or state never matches.
func CSRFHeaderMatches(header, state string) bool {
	header = strings.TrimSpace(header)
	if header == "" || state == "" {
		return false
	}
	want := HashCSRFState(state)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(header)), []byte(want)) == 1
}
