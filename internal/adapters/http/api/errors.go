package api

import (
	"errors"
	"net/http"

	"github.com/okian/fleetready/internal/adapters/auth"
	"github.com/okian/fleetready/internal/adapters/repository"
	service "github.com/okian/fleetready/internal/app"
	"github.com/okian/fleetready/internal/domain/dependency"
	"github.com/okian/fleetready/internal/domain/normalize"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("service unavailable")
	ErrInternal     = errors.New("internal error")
)

// Error carries the operation that failed and the kind used to pick the
// HTTP status.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.Error()
}

// Is matches the error kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// NewKind returns an error of kind for op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind wraps err as kind for op.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap classifies err from the layers below and wraps it for op.
func Wrap(op string, err error) error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return err
	}
	return WrapKind(op, kindOf(err), err)
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, service.ErrBackpressure):
		return ErrBackpressure
	case errors.Is(err, service.ErrNotStarted):
		return ErrUnavailable
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, dependency.ErrCycle),
		errors.Is(err, service.ErrNotApplicable):
		return ErrConflict
	case errors.Is(err, auth.ErrUnauthorized):
		return ErrUnauthorized
	case errors.Is(err, service.ErrInvalidSeverity),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrInvalidBatch),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, dependency.ErrInvalidPart),
		errors.Is(err, normalize.ErrFormat),
		errors.Is(err, normalize.ErrSchemaMismatch):
		return ErrBadRequest
	default:
		return ErrInternal
	}
}

// statusOf maps an API error to its status code and response code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
