package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned when a request is issued before a
	// transport is attached.
	ErrNotInitialized = errors.New("not initialized")
	// ErrInvalidInput is returned for empty or malformed credentials. No
	// request is issued.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBackendRejected matches every *BackendError.
	ErrBackendRejected = errors.New("backend rejected request")
	// ErrCancelled is returned to waiters still pending at shutdown.
	ErrCancelled = errors.New("cancelled")
	// ErrUnrecoverable is wrapped by AuthState.Err for failed sessions.
	ErrUnrecoverable = errors.New("unrecoverable")
)

// BackendError is an error object returned by the backend for a single
// request.
type BackendError struct {
	Code    int
	Message string
}

func (e *BackendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("backend rejected request: %d %s", e.Code, e.Message)
	}
	return "backend rejected request: " + e.Message
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackendRejected
}
