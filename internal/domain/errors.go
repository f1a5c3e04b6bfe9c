package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrRemoteService is matched by every RemoteServiceError via errors.Is.
	ErrRemoteService = errors.New("remote service error")

	// ErrStorage is matched by every StorageError via errors.Is.
	ErrStorage = errors.New("storage error")
)

// RemoteServiceError reports a non-success response from an external
// collaborator such as the recording service or the transcription model.
type RemoteServiceError struct {
	Service    string
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteServiceError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s failed with status %d: %s", e.Service, e.Operation, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s %s failed: %v", e.Service, e.Operation, e.Err)
	default:
		return fmt.Sprintf("%s %s failed: %s", e.Service, e.Operation, e.Body)
	}
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRemoteService) true for any RemoteServiceError.
func (e *RemoteServiceError) Is(target error) bool { return target == ErrRemoteService }

// Detail returns the most useful human-readable description of the failure,
// preferring the response body.
func (e *RemoteServiceError) Detail() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Error()
}

// StorageError reports a failed blob storage operation.
type StorageError struct {
	Operation string
	Key       string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Operation, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError wrapping err, usually ErrValidation.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }
