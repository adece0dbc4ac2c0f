package merge

import (
	"errors"
	"fmt"
)

// ErrMergeConflict is matched by every *MergeConflictError.
var ErrMergeConflict = errors.New("merge conflict")

// MergeConflictError reports a record that cannot be merged automatically
// because a non-overridable identifier disagrees with its candidate event.
type MergeConflictError struct {
	RecordID string
	EventID  string
	Field    string
	Existing string
	Incoming string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict: record %s vs event %s: %s %q != %q",
		e.RecordID, e.EventID, e.Field, e.Incoming, e.Existing)
}

// Is matches ErrMergeConflict.
func (e *MergeConflictError) Is(target error) bool { return target == ErrMergeConflict }
