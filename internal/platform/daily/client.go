package daily

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/phrazzld/meetrec/internal/config"
	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/sethvargo/go-retry"
)

const serviceName = "daily"

const (
	defaultRoomRetries      = 3
	defaultRoomRetryDelay   = 2 * time.Second
	defaultRoomExpiry       = 24 * time.Hour
	defaultMaxParticipants  = 20
	defaultMaxDownloadBytes = 4 << 30
	errorBodyLimit          = 64 << 10
)

// ErrDownloadTooLarge is returned when an artifact exceeds the download limit.
var ErrDownloadTooLarge = errors.New("recording artifact exceeds download limit")

// Client talks to the Daily.co REST API.
type Client struct {
	baseURL          string
	apiKey           string
	http             *http.Client
	logger           *slog.Logger
	roomRetries      uint64
	roomRetryDelay   time.Duration
	maxDownloadBytes int64
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRoomRetry sets how many attempts CreateRoom makes and the pause between them.
func WithRoomRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.roomRetries = uint64(attempts)
		}
		if delay > 0 {
			c.roomRetryDelay = delay
		}
	}
}

// WithMaxDownloadBytes caps the size of a downloaded artifact.
func WithMaxDownloadBytes(n int64) Option {
	return func(c *Client) { c.maxDownloadBytes = n }
}

// NewClient creates a Daily.co client from configuration.
func NewClient(cfg config.DailyConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: daily API key cannot be empty", domain.ErrValidation)
	}
	if _, err := url.ParseRequestURI(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("%w: invalid daily API URL %q: %v", domain.ErrValidation, cfg.APIURL, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL:          strings.TrimRight(cfg.APIURL, "/"),
		apiKey:           cfg.APIKey,
		http:             &http.Client{Timeout: timeout},
		logger:           logger.With("component", "daily_client"),
		roomRetries:      defaultRoomRetries,
		roomRetryDelay:   defaultRoomRetryDelay,
		maxDownloadBytes: defaultMaxDownloadBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type roomRequest struct {
	Name       string         `json:"name,omitempty"`
	Privacy    string         `json:"privacy,omitempty"`
	Properties roomProperties `json:"properties"`
}

type roomProperties struct {
	Exp                 int64         `json:"exp"`
	EnableScreenshare   bool          `json:"enable_screenshare"`
	EnableChat          bool          `json:"enable_chat"`
	MaxParticipants     int           `json:"max_participants"`
	EnablePrejoinUI     bool          `json:"enable_prejoin_ui"`
	EnableKnocking      bool          `json:"enable_knocking"`
	EnableRecording     string        `json:"enable_recording,omitempty"`
	RecordingResolution string        `json:"recording_resolution,omitempty"`
	RecordingLayout     *layoutConfig `json:"recording_layout,omitempty"`
}

type layoutConfig struct {
	Preset          string `json:"preset"`
	MaxParticipants int    `json:"max_participants"`
}

type roomResponse struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRoom creates a room. Rate limiting (429) and transport failures are
// retried with a constant delay; any other non-2xx response is returned at once.
func (c *Client) CreateRoom(ctx context.Context, opts domain.RoomOptions) (*domain.Room, error) {
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = defaultRoomExpiry
	}
	maxParticipants := opts.MaxParticipants
	if maxParticipants <= 0 {
		maxParticipants = defaultMaxParticipants
	}

	req := roomRequest{
		Name:    opts.Name,
		Privacy: opts.Privacy,
		Properties: roomProperties{
			Exp:               time.Now().Add(expiry).Unix(),
			EnableScreenshare: true,
			EnableChat:        true,
			MaxParticipants:   maxParticipants,
			EnablePrejoinUI:   true,
		},
	}
	if opts.EnableRecording {
		rec := domain.DefaultRecordingOptions()
		req.Properties.EnableRecording = "cloud"
		req.Properties.RecordingResolution = fmt.Sprintf("%dx%d", rec.Width, rec.Height)
		req.Properties.RecordingLayout = &layoutConfig{Preset: rec.Layout, MaxParticipants: rec.MaxParticipants}
	}

	backoff := retry.WithMaxRetries(c.roomRetries-1, retry.NewConstant(c.roomRetryDelay))
	attempt := 0
	var out roomResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.doJSON(ctx, http.MethodPost, "/rooms", "create_room", req, &out)
		if err == nil {
			return nil
		}
		if retryable(err) {
			c.logger.WarnContext(ctx, "create room attempt failed",
				"attempt", attempt,
				"error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "room created", "room_name", out.Name, "attempts", attempt)
	return &domain.Room{Name: out.Name, URL: out.URL, CreatedAt: out.CreatedAt}, nil
}

// GetRoom looks up an existing room by name.
func (c *Client) GetRoom(ctx context.Context, name string) (*domain.Room, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: room name cannot be empty", domain.ErrValidation)
	}
	var out roomResponse
	if err := c.doJSON(ctx, http.MethodGet, "/rooms/"+url.PathEscape(name), "get_room", nil, &out); err != nil {
		return nil, err
	}
	return &domain.Room{Name: out.Name, URL: out.URL, CreatedAt: out.CreatedAt}, nil
}

type startRecordingRequest struct {
	RecordingID string           `json:"recording_id"`
	Options     recordingOptions `json:"options"`
}

type recordingOptions struct {
	Format                  string       `json:"format"`
	Resolution              string       `json:"resolution"`
	FPS                     int          `json:"fps"`
	VideoBitrate            int          `json:"video_bitrate"`
	AudioBitrate            int          `json:"audio_bitrate"`
	Layout                  layoutConfig `json:"layout"`
	IncludeChat             bool         `json:"include_chat"`
	IncludeAudio            bool         `json:"include_audio"`
	IncludeVideo            bool         `json:"include_video"`
	IncludeParticipantAudio bool         `json:"include_participant_audio"`
}

type startRecordingResponse struct {
	ID          string `json:"id"`
	RecordingID string `json:"recording_id"`
}

// StartRecording asks the service to start recording a room and returns the
// remote recording ID. When the response carries no ID the requested one is returned.
func (c *Client) StartRecording(
	ctx context.Context,
	roomName string,
	recordingID string,
	opts domain.RecordingOptions,
) (string, error) {
	if roomName == "" {
		return "", fmt.Errorf("%w: room name cannot be empty", domain.ErrValidation)
	}

	req := startRecordingRequest{
		RecordingID: recordingID,
		Options: recordingOptions{
			Format:                  opts.Format,
			Resolution:              fmt.Sprintf("%dx%d", opts.Width, opts.Height),
			FPS:                     opts.FPS,
			VideoBitrate:            opts.VideoBitrate,
			AudioBitrate:            opts.AudioBitrate,
			Layout:                  layoutConfig{Preset: opts.Layout, MaxParticipants: opts.MaxParticipants},
			IncludeChat:             true,
			IncludeAudio:            true,
			IncludeVideo:            true,
			IncludeParticipantAudio: true,
		},
	}

	var out startRecordingResponse
	path := "/rooms/" + url.PathEscape(roomName) + "/recordings"
	if err := c.doJSON(ctx, http.MethodPost, path, "start_recording", req, &out); err != nil {
		return "", err
	}

	switch {
	case out.ID != "":
		return out.ID, nil
	case out.RecordingID != "":
		return out.RecordingID, nil
	default:
		return recordingID, nil
	}
}

type recordingResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	DownloadURL  string `json:"download_url"`
	DownloadLink string `json:"download_link"`
	Duration     int    `json:"duration"`
}

// GetRecording fetches the status and download URL of a remote recording.
// An empty DownloadURL means the artifact is not ready yet.
func (c *Client) GetRecording(ctx context.Context, recordingID string) (*domain.RemoteRecording, error) {
	if recordingID == "" {
		return nil, fmt.Errorf("%w: recording ID cannot be empty", domain.ErrValidation)
	}

	var out recordingResponse
	path := "/recordings/" + url.PathEscape(recordingID)
	if err := c.doJSON(ctx, http.MethodGet, path, "get_recording", nil, &out); err != nil {
		return nil, err
	}

	downloadURL := out.DownloadURL
	if downloadURL == "" {
		downloadURL = out.DownloadLink
	}
	return &domain.RemoteRecording{
		ID:          out.ID,
		Status:      out.Status,
		DownloadURL: downloadURL,
		Duration:    out.Duration,
	}, nil
}

// Download fetches a recording artifact. The request is unauthenticated since
// download links are pre-signed.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid download URL: %v", domain.ErrValidation, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.RemoteServiceError{Service: serviceName, Operation: "download", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp, "download")
	}
	if c.maxDownloadBytes > 0 && resp.ContentLength > c.maxDownloadBytes {
		return nil, ErrDownloadTooLarge
	}

	limit := c.maxDownloadBytes
	if limit <= 0 {
		limit = defaultMaxDownloadBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &domain.RemoteServiceError{Service: serviceName, Operation: "download", Err: err}
	}
	if int64(len(data)) > limit {
		return nil, ErrDownloadTooLarge
	}

	c.logger.DebugContext(ctx, "recording downloaded", "bytes", len(data))
	return data, nil
}

// doJSON sends an authenticated JSON request and decodes a 2xx response into out.
func (c *Client) doJSON(ctx context.Context, method, path, operation string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", operation, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.DebugContext(ctx, "daily request", "method", method, "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.RemoteServiceError{Service: serviceName, Operation: operation, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.statusError(resp, operation)
	}
	if out == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.RemoteServiceError{Service: serviceName, Operation: operation, Err: err}
	}
	if len(raw) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return &domain.RemoteServiceError{
			Service:    serviceName,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			Err:        fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}

func (c *Client) statusError(resp *http.Response, operation string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return &domain.RemoteServiceError{
		Service:    serviceName,
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Body:       string(raw),
	}
}

// retryable reports whether a failed request may succeed when repeated:
// rate limiting and transport errors qualify.
func retryable(err error) bool {
	var remote *domain.RemoteServiceError
	if !errors.As(err, &remote) {
		return false
	}
	if remote.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return remote.StatusCode == 0 && remote.Err != nil
}
