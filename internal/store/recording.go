package store

import (
	"context"

	"github.com/phrazzld/meetrec/internal/domain"
)

// RecordingStore defines the interface for recording registry persistence.
type RecordingStore interface {
	// Create inserts a new recording row.
	// Returns ErrInvalidEntity if the recording fails validation and
	// ErrDuplicate if the unique ID already exists.
	Create(ctx context.Context, rec *domain.Recording) error

	// GetByUniqueID retrieves a recording by its unique ID.
	// Returns ErrRecordingNotFound if the recording does not exist.
	GetByUniqueID(ctx context.Context, uniqueID string) (*domain.Recording, error)

	// FindLatestByRoom returns the newest recording in the room whose status
	// is one of statuses (any status when none are given).
	// Returns ErrRecordingNotFound when nothing matches.
	FindLatestByRoom(ctx context.Context, roomName string, statuses ...domain.RecordingStatus) (*domain.Recording, error)

	// List returns recordings newest first, filtered by status when non-empty.
	List(ctx context.Context, status domain.RecordingStatus) ([]*domain.Recording, error)

	// UpdateStatus moves a recording to status. A non-nil metadata replaces the
	// stored document wholesale; nil keeps it.
	// Returns ErrRecordingNotFound if the recording does not exist and
	// ErrInvalidTransition if its current status does not allow the move.
	UpdateStatus(ctx context.Context, uniqueID string, status domain.RecordingStatus, metadata domain.Metadata) error

	// SetRecordingID replaces the remote correlation ID.
	// Returns ErrRecordingNotFound if the recording does not exist.
	SetRecordingID(ctx context.Context, uniqueID, recordingID string) error
}
