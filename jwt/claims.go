package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	claimID        = "jti"
	claimSubject   = "sub"
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"
)

var (
	// ErrMalformedToken is wrapped by every [MalformedTokenError].
	ErrMalformedToken = errors.New("malformed session token")
	// ErrMissingSubject is returned when encoding a session without a subject.
	ErrMissingSubject = errors.New("session subject is required")
	// ErrReservedProperty is returned when a custom property collides with a registered claim.
	ErrReservedProperty = errors.New("property name is reserved")
	// ErrKeyUnavailable is returned when the signing key cannot be obtained.
	ErrKeyUnavailable = errors.New("signing key unavailable")
)

// MalformedTokenError reports a token that is structurally invalid. Field is
// set when a required claim is missing; Err carries the underlying parse
// failure otherwise.
type MalformedTokenError struct {
	Field string
	Err   error
}

func (e *MalformedTokenError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s hasn't been found", ErrMalformedToken, fieldDescription(e.Field))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", ErrMalformedToken, e.Err)
	}
	return ErrMalformedToken.Error()
}

func (e *MalformedTokenError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedToken}
	}
	return []error{ErrMalformedToken, e.Err}
}

func fieldDescription(field string) string {
	switch field {
	case claimID:
		return "token id (jti)"
	case claimSubject:
		return "token subject (sub)"
	case claimExpiresAt:
		return "token expiration date (exp)"
	case claimIssuedAt:
		return "token creation date (iat)"
	default:
		return field
	}
}

// Session is the input of [Codec.Encode].
type Session struct {
	Subject    string
	TTL        time.Duration
	Properties map[string]any
}

// Claims is a decoded session token.
//
// A Claims value returned by Decode is owned by the caller for the duration
// of one request; the codec keeps no reference to it.
type Claims struct {
	ID         string
	Subject    string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Properties map[string]any
}

// Property returns the raw custom property value.
func (c *Claims) Property(name string) (any, bool) {
	if c == nil || c.Properties == nil {
		return nil, false
	}
	v, ok := c.Properties[name]
	return v, ok
}

// String returns a string property.
func (c *Claims) String(name string) (string, bool) {
	v, ok := c.Property(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Int64 returns an integral property. Decoded numbers arrive as json.Number;
// values set in-process may be any Go integer or float type.
func (c *Claims) Int64(name string) (int64, bool) {
	v, ok := c.Property(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := strconv.ParseFloat(string(n), 64)
			if ferr != nil || f != math.Trunc(f) {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

// Clone returns a deep-enough copy: the property map is copied, values are shared.
func (c *Claims) Clone() *Claims {
	if c == nil {
		return nil
	}
	out := *c
	out.Properties = cloneProperties(c.Properties)
	return &out
}

func cloneProperties(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func isRegistered(name string) bool {
	switch name {
	case claimID, claimSubject, claimIssuedAt, claimExpiresAt:
		return true
	default:
		return false
	}
}
