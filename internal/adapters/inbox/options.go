package inbox

import (
	"time"

	"github.com/okian/fleetready/pkg/logger"
)

// Option configures an Inbox.
type Option func(*Inbox)

// WithSource sets the feed name recorded on ingested records.
func WithSource(source string) Option {
	return func(in *Inbox) {
		if source != "" {
			in.source = source
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(in *Inbox) {
		if l != nil {
			in.log = l
		}
	}
}

// WithClock overrides the clock used to stamp moved files.
func WithClock(now func() time.Time) Option {
	return func(in *Inbox) {
		if now != nil {
			in.now = now
		}
	}
}
