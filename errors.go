package sharrock

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for the request lifecycle. Every error produced by the core
// wraps exactly one of these, and statusTable maps each to an HTTP status.
var (
	ErrMissingParam      = errors.New("missing required parameter")
	ErrBadParamType      = errors.New("bad parameter type")
	ErrAccessDenied      = errors.New("access denied")
	ErrMethodNotAllowed  = errors.New("method not allowed")
	ErrConflict          = errors.New("conflict")
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedFormat = errors.New("unsupported serialization format")
	ErrDuplicateService  = errors.New("duplicate service registration")
)

// Sentinel errors for request binding.
var (
	ErrBindBody = errors.New("bind body")
	ErrBindForm = errors.New("bind form")
)

// statusTable is the single mapping from error kind to HTTP status.
// Order matters only for errors that wrap more than one sentinel.
var statusTable = []struct {
	err    error
	status int
}{
	{ErrMissingParam, http.StatusBadRequest},
	{ErrBadParamType, http.StatusBadRequest},
	{ErrBindBody, http.StatusBadRequest},
	{ErrBindForm, http.StatusBadRequest},
	{ErrAccessDenied, http.StatusForbidden},
	{ErrNotFound, http.StatusNotFound},
	{ErrMethodNotAllowed, http.StatusMethodNotAllowed},
	{ErrConflict, http.StatusConflict},
	{ErrUnsupportedFormat, http.StatusInternalServerError},
}

// StatusCoder is implemented by errors or responses that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ProblemDetail is an RFC 9457 problem details response.
//
//nolint:errname // RFC 9457 standard name
type ProblemDetail struct {
	Type     string            `json:"type,omitempty"`
	Title    string            `json:"title,omitempty"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// Error returns the detail message (or title if detail is empty).
func (p *ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

// StatusCode returns the HTTP status code.
func (p *ProblemDetail) StatusCode() int { return p.Status }

// ValidationError describes a single parameter failure inside a problem body.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// HTTPError is an error with an HTTP status code.
type HTTPError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Error returns the error message.
func (e *HTTPError) Error() string { return e.Message }

// StatusCode returns the HTTP status code.
func (e *HTTPError) StatusCode() int { return e.Status }

// Error returns an error with the given HTTP status code and message.
func Error(status int, message string) error {
	return &HTTPError{Status: status, Message: message}
}

// Errorf returns a formatted error with the given HTTP status code.
func Errorf(status int, format string, args ...any) error {
	return &HTTPError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// MissingParamError reports a required parameter that was not supplied.
type MissingParamError struct {
	Name string
}

func (e *MissingParamError) Error() string {
	return e.Name + " is a required parameter and has not been specified"
}

func (e *MissingParamError) Unwrap() error { return ErrMissingParam }

// BadParamTypeError reports a parameter whose value cannot be coerced to its kind.
type BadParamTypeError struct {
	Name  string
	Value any
	Kind  Kind
}

func (e *BadParamTypeError) Error() string {
	return fmt.Sprintf("parameter %s must be of type %s, supplied value was: %v", e.Name, e.Kind, e.Value)
}

func (e *BadParamTypeError) Unwrap() error { return ErrBadParamType }

// MethodNotAllowedError reports an HTTP verb a resource does not implement.
type MethodNotAllowedError struct {
	Method  string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method %s not allowed, expected one of %s", e.Method, strings.Join(e.Allowed, ", "))
}

func (e *MethodNotAllowedError) Unwrap() error { return ErrMethodNotAllowed }

// AccessDenied returns an error that maps to 403 with the given reason.
func AccessDenied(reason string) error {
	return fmt.Errorf("%w: %s", ErrAccessDenied, reason)
}

// Conflict returns an error that maps to 409 with the given message.
func Conflict(message string) error {
	return fmt.Errorf("%w: %s", ErrConflict, message)
}

// ErrorStatus extracts the HTTP status code from an error. StatusCoder wins,
// then the sentinel table; anything else is http.StatusInternalServerError.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	for _, row := range statusTable {
		if errors.Is(err, row.err) {
			return row.status
		}
	}
	return http.StatusInternalServerError
}

// problemFor converts any error into a ProblemDetail. Server faults are masked
// so internal detail never reaches the response body.
func problemFor(err error) *ProblemDetail {
	var pd *ProblemDetail
	if errors.As(err, &pd) {
		return pd
	}

	status := ErrorStatus(err)
	problem := &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
	}
	if status >= http.StatusInternalServerError {
		problem.Detail = http.StatusText(status)
	}

	var missing *MissingParamError
	var badType *BadParamTypeError
	switch {
	case errors.As(err, &missing):
		problem.Errors = []ValidationError{{Field: missing.Name, Message: "required"}}
	case errors.As(err, &badType):
		problem.Errors = []ValidationError{{
			Field:   badType.Name,
			Message: "must be of type " + string(badType.Kind),
			Value:   badType.Value,
		}}
	}
	return problem
}
