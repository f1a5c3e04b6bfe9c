// Package gemini transcribes recording artifacts with Google's Gemini API.
//
// The Transcriber sends the media bytes inline together with a transcription
// prompt and returns the plain text of the first candidate. Transient API
// failures (rate limiting, server errors, transport errors) are retried with
// exponential backoff and jitter; safety blocks and empty responses are
// returned immediately.
package gemini
