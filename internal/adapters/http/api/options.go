package api

import (
	"github.com/okian/fleetready/internal/adapters/auth"
	"github.com/okian/fleetready/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithValidator protects write routes with bearer tokens checked by v.
func WithValidator(v auth.Validator) Option {
	return func(s *Server) { s.validator = v }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxLimit caps the limit accepted by GET /fleet/summary.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithMaxBodyBytes caps POST /ingest bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}
