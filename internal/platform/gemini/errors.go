package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyMedia is returned when there is nothing to transcribe.
	ErrEmptyMedia = errors.New("media cannot be empty")

	// ErrContentBlocked is returned when the model refuses the content.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrInvalidResponse is returned when the model response has no usable text.
	ErrInvalidResponse = errors.New("invalid transcription response")
)
