package shared

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is the type of request context keys owned by the API.
type ContextKey string

const (
	// TraceIDKey is the key for the trace ID in the request context.
	TraceIDKey ContextKey = "traceID"

	// TraceIDHeader carries the trace ID on requests and responses.
	TraceIDHeader = "X-Trace-ID"
)

// validTraceID limits caller-supplied trace IDs to short opaque tokens.
var validTraceID = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// SetTraceID adds a freshly generated trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// WithTraceID adds traceID to the context, generating a new one when
// traceID is empty or not a plausible identifier.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if !validTraceID.MatchString(traceID) {
		traceID = NewTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// NewTraceID returns a random 32 character hex identifier.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
