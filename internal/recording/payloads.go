package recording

// DefaultCleanupDays is the artifact age, in whole days, beyond which cleanup deletes.
const DefaultCleanupDays = 30

// StartRecordingPayload is the payload of a start_recording task.
type StartRecordingPayload struct {
	MeetingID string `json:"meeting_id"          validate:"required"`
	RoomURL   string `json:"room_url"            validate:"required,url"`
	// RoomName defaults to MeetingID.
	RoomName string `json:"room_name,omitempty"`
	// UniqueID makes the task idempotent: an existing recording with this ID
	// is reused instead of creating a new one.
	UniqueID string `json:"unique_id,omitempty" validate:"omitempty,startswith=rec_"`
}

// ProcessRecordingPayload is the payload of a process_recording task.
type ProcessRecordingPayload struct {
	// RecordingID is the recording's unique ID.
	RecordingID  string `json:"recording_id"            validate:"required"`
	RecordingURL string `json:"recording_url,omitempty" validate:"omitempty,url"`
}

// CleanupRecordingsPayload is the payload of a cleanup_recordings task.
type CleanupRecordingsPayload struct {
	DaysOld *int `json:"days_old,omitempty" validate:"omitempty,gte=0"`
}

// Days returns the configured age limit or DefaultCleanupDays.
func (p CleanupRecordingsPayload) Days() int {
	if p.DaysOld == nil {
		return DefaultCleanupDays
	}
	return *p.DaysOld
}

// CleanupReport summarizes one cleanup sweep.
type CleanupReport struct {
	Scanned           int `json:"scanned"`
	Expired           int `json:"expired"`
	DeletedObjects    int `json:"deleted_objects"`
	DeletedRecordings int `json:"deleted_recordings"`
}
