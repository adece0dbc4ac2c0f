package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/fleetready/internal/domain/model"
)

// Sentinel error kinds for this package. Typed errors match them via errors.Is.
var (
	ErrFormat         = errors.New("format error")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// FormatError reports bytes that cannot be parsed as the declared format.
type FormatError struct {
	Format model.Format
	Field  string // set when a single field failed to parse
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "format error (%s)", e.Format)
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches ErrFormat.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Unwrap returns the underlying parser error.
func (e *FormatError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a parsed record lacking required fields.
type SchemaMismatchError struct {
	Format  model.Format
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch (%s): missing %s", e.Format, strings.Join(e.Missing, ", "))
}

// Is matches ErrSchemaMismatch.
func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// Reason classifies err for rejected VendorRecords and metrics.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrSchemaMismatch):
		return "schema"
	default:
		return "unknown"
	}
}
