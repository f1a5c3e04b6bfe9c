package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/meetrec/internal/api/shared"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/platform/daily"
	"github.com/phrazzld/meetrec/internal/recording"
	"github.com/phrazzld/meetrec/internal/store"
	"github.com/phrazzld/meetrec/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors
	var remoteErr *domain.RemoteServiceError

	switch {
	case err == nil:
		return http.StatusInternalServerError

	// Webhook authentication
	case errors.Is(err, daily.ErrMissingSignature),
		errors.Is(err, daily.ErrInvalidSignature),
		errors.Is(err, daily.ErrStaleWebhook):
		return http.StatusUnauthorized

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound

	case errors.Is(err, store.ErrInvalidTransition),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, task.ErrNotRetryable),
		errors.Is(err, recording.ErrRecordingDeleted):
		return http.StatusConflict

	case errors.Is(err, shared.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, task.ErrInvalidPayload),
		errors.Is(err, task.ErrEmptyTaskType),
		errors.Is(err, recording.ErrInvalidWebhook),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	// Upstream collaborators
	case errors.Is(err, domain.ErrRemoteService),
		errors.Is(err, domain.ErrStorage):
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	var fieldErr *domain.ValidationError
	var remoteErr *domain.RemoteServiceError

	switch {
	case err == nil:
		return "An unexpected error occurred"

	case errors.Is(err, daily.ErrMissingSignature):
		return "Missing webhook signature"
	case errors.Is(err, daily.ErrInvalidSignature):
		return "Invalid webhook signature"
	case errors.Is(err, daily.ErrStaleWebhook):
		return "Webhook timestamp outside allowed window"

	case errors.Is(err, store.ErrRecordingNotFound):
		return "Recording not found"
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"
	case errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusNotFound:
		return "Room not found"

	case errors.Is(err, recording.ErrRecordingDeleted):
		return "Recording has been deleted"
	case errors.Is(err, task.ErrNotRetryable):
		return "Only failed tasks can be retried"
	case errors.Is(err, store.ErrInvalidTransition):
		return "Operation not allowed in the current status"
	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.Is(err, shared.ErrBodyTooLarge):
		return "Request body too large"
	case errors.Is(err, recording.ErrInvalidWebhook):
		return "Invalid webhook event"
	case errors.As(err, &validationErrs):
		return SanitizeValidationError(err)
	case errors.As(err, &fieldErr):
		return fmt.Sprintf("Invalid %s: %s", fieldErr.Field, fieldErr.Message)
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, task.ErrInvalidPayload),
		errors.Is(err, task.ErrEmptyTaskType):
		return "Invalid request"
	case errors.Is(err, domain.ErrRemoteService):
		return "Recording service request failed"
	case errors.Is(err, domain.ErrStorage):
		return "Storage request failed"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message naming the first failing field.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fieldName(fe.Field()), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// fieldName converts a Go field name such as RoomURL into room_url.
func fieldName(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "url":
		return "must be a valid URL"
	case "startswith":
		return "invalid identifier"
	case "min", "gte":
		return "too small"
	case "max", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the redacted detail. A non-empty fallback replaces the generic message
// for unclassified server errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
