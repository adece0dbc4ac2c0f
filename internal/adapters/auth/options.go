package auth

import "time"

// JWTOption configures a JWT validator.
type JWTOption func(*JWT)

// WithIssuer requires the iss claim to equal issuer.
func WithIssuer(issuer string) JWTOption {
	return func(v *JWT) { v.issuer = issuer }
}

// WithLeeway sets the allowed clock skew.
func WithLeeway(d time.Duration) JWTOption {
	return func(v *JWT) {
		if d >= 0 {
			v.leeway = d
		}
	}
}

// WithClock overrides the validation clock.
func WithClock(now func() time.Time) JWTOption {
	return func(v *JWT) {
		if now != nil {
			v.now = now
		}
	}
}
