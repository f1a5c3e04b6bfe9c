package api

import (
	"errors"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/meetrec/internal/api/shared"
	"github.com/phrazzld/meetrec/internal/domain"
)

// getPathTaskID extracts a positive task ID from the URL path parameters.
func getPathTaskID(r *http.Request, paramName string) (int64, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return 0, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(paramName, "has invalid format", domain.ErrValidation)
	}
	return id, nil
}

// getPathUniqueID extracts a recording unique ID from the URL path parameters.
func getPathUniqueID(r *http.Request, paramName string) (string, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return "", domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}
	if !strings.HasPrefix(raw, domain.UniqueIDPrefix) {
		return "", domain.NewValidationError(paramName, "has invalid format", domain.ErrValidation)
	}
	return raw, nil
}

// decodeRequest decodes and validates a JSON body, writing a 4xx response on
// failure. Returns false when a response has already been written.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		switch {
		case optional && errors.Is(err, io.EOF):
		case errors.Is(err, shared.ErrBodyTooLarge):
			HandleAPIError(w, r, err, "")
			return false
		default:
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
			return false
		}
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}

var nonSlug = regexp.MustCompile(`[^a-z0-9-]+`)

// roomSlug lowercases name and replaces anything but letters, digits and
// dashes so it can prefix a room name.
func roomSlug(name string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "meeting"
	}
	return slug
}
