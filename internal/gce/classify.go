package gce

import (
	"errors"
	"net/http"
	"strings"
)

// ClassifiedError wraps a control-plane error with user-facing context.
type ClassifiedError struct {
	Message string // user-facing description
	Fix     string // actionable fix instruction
	Cause   error  // original error
}

func (e *ClassifiedError) Error() string {
	return e.Message
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ClassifyError examines an error from the client and returns a
// ClassifiedError with actionable guidance, or nil if the error is not
// recognized and should be returned as-is.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var ae *AuthError
	if errors.As(err, &ae) {
		return &ClassifiedError{
			Message: "GCP credentials were rejected",
			Fix:     "run: strato init (the refresh token may have been revoked)",
			Cause:   err,
		}
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusUnauthorized:
			return &ClassifiedError{
				Message: "GCP credentials are invalid",
				Fix:     "run: strato init",
				Cause:   err,
			}
		case http.StatusForbidden:
			return &ClassifiedError{
				Message: "GCP permissions denied",
				Fix:     "your account needs the Compute Admin role on the project",
				Cause:   err,
			}
		case http.StatusTooManyRequests:
			return &ClassifiedError{
				Message: "GCP API quota exceeded",
				Fix:     "wait a minute and retry, or request a quota increase",
				Cause:   err,
			}
		}
	}

	msg := err.Error()
	if containsAny(msg, "connection refused", "no such host", "i/o timeout") {
		return &ClassifiedError{
			Message: "cannot reach the GCP API",
			Fix:     "check your internet connection and proxy settings",
			Cause:   err,
		}
	}

	return nil
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
