package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KeySource supplies the HMAC key. *keystore.Store satisfies it.
type KeySource interface {
	Key() ([]byte, error)
}

// Config configures a [Codec].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Keys   KeySource
	Leeway time.Duration
	Now    func() time.Time
	NewID  func() string
}

// Codec signs and verifies session tokens. It holds no key material itself.
type Codec struct {
	config Config
	parser *jwt.Parser
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Keys == nil {
		return nil, errors.New("codec requires a key source")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(cfg.Now),
		jwt.WithJSONNumber(),
		// a non-canonical last character must not decode to the same signature
		jwt.WithStrictDecoding(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}

	return &Codec{config: cfg, parser: jwt.NewParser(options...)}, nil
}

// Encode builds and signs a new token for s.
func (c *Codec) Encode(s Session) (string, error) {
	if s.Subject == "" {
		return "", ErrMissingSubject
	}
	now := c.config.Now()

	claims := jwt.MapClaims{}
	for k, v := range s.Properties {
		if isRegistered(k) {
			return "", fmt.Errorf("%w: %q", ErrReservedProperty, k)
		}
		claims[k] = v
	}
	claims[claimID] = c.config.NewID()
	claims[claimSubject] = s.Subject
	claims[claimIssuedAt] = jwt.NewNumericDate(now)
	claims[claimExpiresAt] = jwt.NewNumericDate(now.Add(s.TTL))

	return c.sign(claims)
}

// Refresh re-signs claims with a new expiration of now+ttl. The id, subject,
// creation date and every custom property are copied verbatim.
func (c *Codec) Refresh(claims *Claims, ttl time.Duration) (string, error) {
	if claims == nil || claims.Subject == "" {
		return "", ErrMissingSubject
	}

	out := jwt.MapClaims{}
	for k, v := range claims.Properties {
		if isRegistered(k) {
			continue
		}
		out[k] = v
	}
	out[claimID] = claims.ID
	out[claimSubject] = claims.Subject
	out[claimIssuedAt] = jwt.NewNumericDate(claims.IssuedAt)
	out[claimExpiresAt] = jwt.NewNumericDate(c.config.Now().Add(ttl))

	return c.sign(out)
}

func (c *Codec) sign(claims jwt.MapClaims) (string, error) {
	key, err := c.config.Keys.Key()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// Decode verifies token. See the package documentation for the three outcomes.
func (c *Codec) Decode(token string) (*Claims, bool, error) {
	key, err := c.config.Keys.Key()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}

	mc := jwt.MapClaims{}
	_, err = c.parser.ParseWithClaims(token, mc, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		if absent(err, token) {
			return nil, false, nil
		}
		return nil, false, &MalformedTokenError{Err: err}
	}

	return claimsFromMap(mc)
}

// absent reports whether err means "no valid session" rather than tampering
// with the token structure.
func absent(err error, token string) bool {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet):
		return true
	case errors.Is(err, jwt.ErrTokenMalformed):
		// an undecodable signature segment on an otherwise well-formed token
		// is a signature mismatch, so only header and claims are checked
		dot := strings.LastIndexByte(token, '.')
		if dot < 0 {
			return false
		}
		_, _, perr := jwt.NewParser().ParseUnverified(token[:dot+1], jwt.MapClaims{})
		return perr == nil
	default:
		return false
	}
}

func claimsFromMap(mc jwt.MapClaims) (*Claims, bool, error) {
	id, err := stringClaim(mc, claimID)
	if err != nil {
		return nil, false, err
	}
	sub, err := mc.GetSubject()
	if err != nil {
		return nil, false, &MalformedTokenError{Err: err}
	}
	if sub == "" {
		return nil, false, &MalformedTokenError{Field: claimSubject}
	}
	exp, err := mc.GetExpirationTime()
	if err != nil {
		return nil, false, &MalformedTokenError{Err: err}
	}
	if exp == nil {
		return nil, false, &MalformedTokenError{Field: claimExpiresAt}
	}
	iat, err := mc.GetIssuedAt()
	if err != nil {
		return nil, false, &MalformedTokenError{Err: err}
	}
	if iat == nil {
		return nil, false, &MalformedTokenError{Field: claimIssuedAt}
	}

	props := make(map[string]any, len(mc))
	for k, v := range mc {
		if !isRegistered(k) {
			props[k] = v
		}
	}

	return &Claims{
		ID:         id,
		Subject:    sub,
		IssuedAt:   iat.Time,
		ExpiresAt:  exp.Time,
		Properties: props,
	}, true, nil
}

func stringClaim(mc jwt.MapClaims, name string) (string, error) {
	raw, ok := mc[name]
	if !ok || raw == nil {
		return "", &MalformedTokenError{Field: name}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &MalformedTokenError{Err: fmt.Errorf("%s must be a string", name)}
	}
	if s == "" {
		return "", &MalformedTokenError{Field: name}
	}
	return s, nil
}
