// Package errs provides the error type returned by API handlers and the mapping
// from domain errors to HTTP status codes.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/reporting"
)

// Code classifies an API error.
type Code int

const (
	Internal Code = iota
	InvalidArgument
	NotFound
	FailedPrecondition
	PermissionDenied
)

var codeNames = map[Code]string{
	Internal:           "internal",
	InvalidArgument:    "invalid_argument",
	NotFound:           "not_found",
	FailedPrecondition: "failed_precondition",
	PermissionDenied:   "permission_denied",
}

func (c Code) String() string { return codeNames[c] }

// HTTPStatus returns the status code the error is written with.
func (c Code) HTTPStatus() int {
	switch c {
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case FailedPrecondition:
		return http.StatusConflict
	case PermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is an error carrying the code it is reported with.
type Error struct {
	Code    Code   `json:"-"`
	Kind    string `json:"code"`
	Message string `json:"message"`
	err     error
}

// New wraps err with code.
func New(code Code, err error) *Error {
	return &Error{Code: code, Kind: code.String(), Message: err.Error(), err: err}
}

// Newf formats a message and wraps it with code.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Errorf(format, args...))
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.err }

// FromDomain maps an error returned by the application layer to an API error.
// Internal failures keep their detail out of the message.
func FromDomain(err error) *Error {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case reporting.IsNotFound(err):
		return New(NotFound, err)
	case analysis.IsBadRequest(err):
		return New(InvalidArgument, err)
	case errors.Is(err, analysis.ErrResultNotFinished):
		return New(FailedPrecondition, err)
	case errors.Is(err, analysis.ErrAccessDenied):
		return New(PermissionDenied, err)
	default:
		return &Error{Code: Internal, Kind: Internal.String(), Message: http.StatusText(http.StatusInternalServerError), err: err}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Check validates v against its struct tags.
func Check(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("validation failed: %s", strings.Join(fields, "; "))
	}
	return nil
}
