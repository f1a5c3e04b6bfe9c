package domain

import "time"

// RecordingOptions is the capture configuration sent when starting a remote
// recording.
type RecordingOptions struct {
	Format          string `json:"format"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	FPS             int    `json:"fps"`
	VideoBitrate    int    `json:"video_bitrate"`
	AudioBitrate    int    `json:"audio_bitrate"`
	Layout          string `json:"layout"`
	MaxParticipants int    `json:"max_participants"`
}

// DefaultRecordingOptions returns the fixed configuration every recording uses.
func DefaultRecordingOptions() RecordingOptions {
	return RecordingOptions{
		Format:          "mp4",
		Width:           1920,
		Height:          1080,
		FPS:             30,
		VideoBitrate:    3000000,
		AudioBitrate:    128000,
		Layout:          "gallery",
		MaxParticipants: 9,
	}
}

// Metadata renders the options as recording metadata settings.
func (o RecordingOptions) Metadata() Metadata {
	return Metadata{
		"format":           o.Format,
		"resolution":       map[string]any{"width": o.Width, "height": o.Height},
		"fps":              o.FPS,
		"video_bitrate":    o.VideoBitrate,
		"audio_bitrate":    o.AudioBitrate,
		"layout":           o.Layout,
		"max_participants": o.MaxParticipants,
	}
}

// Room is a remote meeting room.
type Room struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// RoomOptions configures a new remote room.
type RoomOptions struct {
	Name            string        `json:"name,omitempty"`
	Privacy         string        `json:"privacy,omitempty"`
	MaxParticipants int           `json:"max_participants,omitempty"`
	Expiry          time.Duration `json:"-"`
	EnableRecording bool          `json:"-"`
}

// RemoteRecording is the remote service's view of a recording.
type RemoteRecording struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
	Duration    int    `json:"duration,omitempty"`
}

// BlobObject describes one stored object.
type BlobObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Webhook event types delivered by the remote recording service.
const (
	WebhookRecordingCompleted = "recording.completed"
)

// WebhookEvent is the completion notification posted by the remote service.
type WebhookEvent struct {
	Type string           `json:"type"`
	Data WebhookEventData `json:"data"`
}

// WebhookEventData carries the room and artifact of a webhook event.
type WebhookEventData struct {
	RoomName     string `json:"room_name"`
	RecordingURL string `json:"recording_url"`
	RecordingID  string `json:"recording_id,omitempty"`
}
