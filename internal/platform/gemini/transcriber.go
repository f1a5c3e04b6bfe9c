package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/meetrec/internal/config"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

const serviceName = "gemini"

const transcriptionPrompt = `Transcribe the spoken audio of this meeting recording.
Return plain text only. Start a new line whenever the speaker changes and
prefix it with a speaker label such as "Speaker 1:". Do not summarize.`

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 2 * time.Second
	maxBackoff        = time.Minute
)

// contentGenerator is the part of the genai client the transcriber calls.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		cfg *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Transcriber turns recordings into text using a Gemini model.
type Transcriber struct {
	logger     *slog.Logger
	models     contentGenerator
	model      string
	maxRetries uint64
	baseDelay  time.Duration
}

// NewTranscriber creates a Transcriber backed by the Gemini API.
func NewTranscriber(ctx context.Context, logger *slog.Logger, cfg config.TranscriptionConfig) (*Transcriber, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", domain.ErrValidation)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", domain.ErrValidation)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newTranscriber(logger, client.Models, cfg), nil
}

func newTranscriber(logger *slog.Logger, models contentGenerator, cfg config.TranscriptionConfig) *Transcriber {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		logger.Warn("Invalid max retries value, using default", "max_retries", defaultMaxRetries)
		maxRetries = defaultMaxRetries
	}
	baseDelay := time.Duration(cfg.RetryDelaySeconds) * time.Second
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	return &Transcriber{
		logger:     logger.With("component", "gemini_transcriber", "model", cfg.ModelName),
		models:     models,
		model:      cfg.ModelName,
		maxRetries: uint64(maxRetries),
		baseDelay:  baseDelay,
	}
}

// Transcribe returns the transcript of media, which is sent inline with mimeType.
func (t *Transcriber) Transcribe(ctx context.Context, media []byte, mimeType string) (string, error) {
	if len(media) == 0 {
		return "", ErrEmptyMedia
	}
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: media}},
			{Text: transcriptionPrompt},
		},
	}}

	backoff := retry.NewExponential(t.baseDelay)
	backoff = retry.WithJitterPercent(50, backoff)
	backoff = retry.WithCappedDuration(maxBackoff, backoff)
	backoff = retry.WithMaxRetries(t.maxRetries, backoff)

	attempt := 0
	var transcript string
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		t.logger.InfoContext(ctx, "Making Gemini API call",
			"attempt", attempt,
			"max_attempts", t.maxRetries+1,
			"media_bytes", len(media))

		resp, err := t.models.GenerateContent(ctx, t.model, contents, nil)
		if err != nil {
			t.logger.ErrorContext(ctx, "Gemini API call error", "attempt", attempt, "error", err)
			remote := &domain.RemoteServiceError{
				Service:    serviceName,
				Operation:  "transcribe",
				StatusCode: statusCode(err),
				Err:        err,
			}
			if transient(ctx, err) {
				return retry.RetryableError(remote)
			}
			return remote
		}

		text, err := extractText(resp)
		if err != nil {
			t.logger.WarnContext(ctx, "Permanent error occurred, not retrying", "error", err)
			return err
		}
		transcript = text
		return nil
	})
	if err != nil {
		return "", err
	}

	t.logger.InfoContext(ctx, "Gemini API call successful",
		"attempt", attempt,
		"transcript_length", len(transcript))
	return transcript, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", ErrInvalidResponse)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrInvalidResponse)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text in response", ErrInvalidResponse)
	}
	return text, nil
}

// statusCode extracts the HTTP status of a Gemini API error, or 0.
func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}

// transient reports whether a failed call is worth repeating. Rate limiting,
// server errors and transport failures are; cancellation and client errors are not.
func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	code := statusCode(err)
	if code == 0 {
		return true
	}
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
