package dedupe

import "errors"

// ErrBackend wraps failures of a remote admission store.
var ErrBackend = errors.New("dedupe backend failed")
