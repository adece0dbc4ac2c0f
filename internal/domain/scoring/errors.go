package scoring

import "errors"

// ErrInvalidWindow is returned for empty or inverted windows.
var ErrInvalidWindow = errors.New("invalid scoring window")
