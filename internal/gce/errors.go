package gce

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx response from the control plane.
type StatusError struct {
	Code    int    // HTTP status code
	Message string // status message from the error body, or the standard status text
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gce: HTTP %d: %s", e.Code, e.Message)
}

// AuthError is a token refresh or authorization failure.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("gce: authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ParseError is a malformed resource URL or response body. It is distinct
// from transport-level failures: the request itself succeeded but the
// payload could not be understood.
type ParseError struct {
	What string // what was being parsed
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gce: parsing %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// OperationError is an asynchronous operation that completed with an
// embedded error. Only the first error of the operation's error list is
// carried; the platform may attach more, but they are discarded.
type OperationError struct {
	Code    string
	Message string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("gce: operation failed: %s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the control plane. Callers
// that probe for resources which may legitimately not exist yet use this to
// turn the error into an absence result.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
