package dedupe

import "time"

// Option configures an InMemory deduper.
type Option func(*InMemory)

// WithMaxSize bounds the number of ids kept in memory.
// If maxSize <= 0 the set is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *InMemory) {
		d.maxSize = maxSize
	}
}

// RedisOption configures a Redis deduper.
type RedisOption func(*Redis)

// WithKeyPrefix sets the key namespace, default "fleetready:seen:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithTTL expires admission markers after ttl; zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}
