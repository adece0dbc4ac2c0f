package secrets

import "github.com/okian/fleetready/pkg/logger"

// Option configures a FileStore.
type Option func(*FileStore)

// WithEnvPrefix sets the prefix of environment fallbacks.
func WithEnvPrefix(prefix string) Option {
	return func(s *FileStore) { s.envPrefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.log = l
		}
	}
}
