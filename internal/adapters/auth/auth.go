// Package auth validates bearer tokens presented to the write endpoints.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated caller.
type Principal struct {
	Subject   string
	Method    string
	ExpiresAt time.Time
}

// Validator checks a token and returns the caller it identifies.
// Every failure matches ErrUnauthorized.
type Validator interface {
	Validate(ctx context.Context, token string) (Principal, error)
}

// KeySource returns the current HMAC signing key. It is consulted on every
// validation so rotated keys take effect without a restart.
type KeySource func(ctx context.Context) ([]byte, error)

// Claims carried by fleetready tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// JWT validates HS256 tokens.
type JWT struct {
	key    KeySource
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewJWT creates an HS256 validator reading its key from key.
func NewJWT(key KeySource, opts ...JWTOption) *JWT {
	v := &JWT{key: key, leeway: 30 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate implements Validator.
func (v *JWT) Validate(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrMissingToken)
	}
	secret, err := v.key(ctx)
	if err != nil || len(secret) == 0 {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, errors.Join(ErrSigningKey, err))
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...); err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	p := Principal{Subject: claims.Subject, Method: "jwt"}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return p, nil
}

// Sign issues an HS256 token for subject valid for ttl.
func Sign(secret []byte, issuer, subject string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// APIKeys accepts a fixed set of keys, each mapped to a subject.
type APIKeys struct {
	keys map[string]string
}

// NewAPIKeys creates a validator for keys (key -> subject).
func NewAPIKeys(keys map[string]string) *APIKeys {
	cp := make(map[string]string, len(keys))
	for k, v := range keys {
		cp[k] = v
	}
	return &APIKeys{keys: cp}
}

// Validate implements Validator. Keys are compared in constant time.
func (a *APIKeys) Validate(_ context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, ErrMissingToken)
	}
	for key, subject := range a.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1 {
			return Principal{Subject: subject, Method: "api_key"}, nil
		}
	}
	return Principal{}, fmt.Errorf("%w: unknown api key", ErrUnauthorized)
}

// Chain tries each validator in order and returns the first success.
type Chain []Validator

// Validate implements Validator.
func (c Chain) Validate(ctx context.Context, token string) (Principal, error) {
	errs := make([]error, 0, len(c))
	for _, v := range c {
		p, err := v.Validate(ctx, token)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return Principal{}, fmt.Errorf("%w: no validators configured", ErrUnauthorized)
	}
	return Principal{}, errors.Join(errs...)
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
