package api

import (
	"errors"
	"fmt"

	"github.com/fadehq/redact-client/internal/domain"
)

// ErrAuthExpired marks a 403 from the backend: the session token is invalid
// or expired. Never retried; the caller must re-authenticate.
var ErrAuthExpired = errors.New("authentication expired or invalid")

// APIError is a non-2xx response from the processing service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("redact service status %d: %s", e.StatusCode, e.Message)
}

// ConflictError is the 409 duplicate-upload branch. It is a recoverable
// outcome, not a failure: it carries the pre-existing document.
type ConflictError struct {
	ExistingDocument domain.Document
	Reason           string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("duplicate upload of %s: %s", e.ExistingDocument.Filename, e.Reason)
}

// IsTransient reports whether err is worth retrying on a later attempt or
// poll tick. Auth and conflict outcomes are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthExpired) {
		return false
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return true
}
