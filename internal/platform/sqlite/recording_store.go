package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/phrazzld/meetrec/internal/domain"
	"github.com/phrazzld/meetrec/internal/platform/logger"
	"github.com/phrazzld/meetrec/internal/store"
)

const recordingColumns = `unique_id, meeting_id, recording_id, room_name, room_url, status, metadata, created_at, updated_at`

// RecordingStore implements store.RecordingStore on SQLite.
type RecordingStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

var _ store.RecordingStore = (*RecordingStore)(nil)

// NewRecordingStore creates a RecordingStore over db.
func NewRecordingStore(db store.DBTX, log *slog.Logger) *RecordingStore {
	if log == nil {
		log = slog.Default()
	}
	return &RecordingStore{
		db:     db,
		logger: log.With(slog.String("component", "recording_store")),
		now:    time.Now,
	}
}

// WithTx returns a RecordingStore that runs its statements in tx.
func (s *RecordingStore) WithTx(tx *sql.Tx) *RecordingStore {
	return &RecordingStore{db: tx, logger: s.logger, now: s.now}
}

func scanRecording(row rowScanner) (*domain.Recording, error) {
	var (
		r         domain.Recording
		status    string
		metadata  string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&r.UniqueID, &r.MeetingID, &r.RecordingID, &r.RoomName, &r.RoomURL,
		&status, &metadata, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.Status = domain.RecordingStatus(status)

	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	r.Metadata = domain.Metadata{}
	if metadata != "" {
		if err := sonic.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &r, nil
}

func encodeMetadata(m domain.Metadata) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := sonic.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

// Create implements store.RecordingStore.
func (s *RecordingStore) Create(ctx context.Context, rec *domain.Recording) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	metadata, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	err = retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO recordings (`+recordingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.UniqueID, rec.MeetingID, rec.RecordingID, rec.RoomName, rec.RoomURL,
			string(rec.Status), metadata, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
		return err
	})
	if err != nil {
		log.Error("failed to create recording",
			slog.String("unique_id", rec.UniqueID),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create recording: %w", mapError(err))
	}

	log.Debug("recording created",
		slog.String("unique_id", rec.UniqueID),
		slog.String("status", string(rec.Status)))
	return nil
}

// GetByUniqueID implements store.RecordingStore.
func (s *RecordingStore) GetByUniqueID(ctx context.Context, uniqueID string) (*domain.Recording, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE unique_id = ?`, uniqueID)
	r, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrRecordingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording %s: %w", uniqueID, err)
	}
	return r, nil
}

// FindLatestByRoom implements store.RecordingStore.
func (s *RecordingStore) FindLatestByRoom(
	ctx context.Context,
	roomName string,
	statuses ...domain.RecordingStatus,
) (*domain.Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE room_name = ?`
	args := []any{roomName}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT 1`

	r, err := scanRecording(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrRecordingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recording in room %s: %w", roomName, err)
	}
	return r, nil
}

// List implements store.RecordingStore.
func (s *RecordingStore) List(ctx context.Context, status domain.RecordingStatus) ([]*domain.Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*domain.Recording, 0)
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recording: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recordings: %w", err)
	}
	return out, nil
}

// UpdateStatus implements store.RecordingStore. The allowed source statuses
// are part of the WHERE clause, so a concurrent writer cannot slip an
// invalid transition in between a read and the update.
func (s *RecordingStore) UpdateStatus(
	ctx context.Context,
	uniqueID string,
	status domain.RecordingStatus,
	metadata domain.Metadata,
) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrInvalidRecordingStatus)
	}
	sources := domain.TransitionSources(status)

	var meta any
	if metadata != nil {
		encoded, err := encodeMetadata(metadata)
		if err != nil {
			return err
		}
		meta = encoded
	}

	args := []any{string(status), formatTime(s.now()), meta, uniqueID}
	for _, src := range sources {
		args = append(args, string(src))
	}
	query := `UPDATE recordings SET status = ?, updated_at = ?, metadata = COALESCE(?, metadata)
		WHERE unique_id = ? AND status IN (` + placeholders(len(sources)) + `)`

	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update recording %s: %w", uniqueID, mapError(err))
	}
	if affected == 1 {
		logger.FromContextOrDefault(ctx, s.logger).Debug("recording status updated",
			slog.String("unique_id", uniqueID),
			slog.String("status", string(status)))
		return nil
	}

	current, err := s.GetByUniqueID(ctx, uniqueID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: recording %s cannot move from %s to %s",
		store.ErrInvalidTransition, uniqueID, current.Status, status)
}

// SetRecordingID implements store.RecordingStore.
func (s *RecordingStore) SetRecordingID(ctx context.Context, uniqueID, recordingID string) error {
	if recordingID == "" {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrEmptyRecordingID)
	}
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE recordings SET recording_id = ?, updated_at = ? WHERE unique_id = ?`,
			recordingID, formatTime(s.now()), uniqueID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to set recording id for %s: %w", uniqueID, err)
	}
	if affected == 0 {
		return store.ErrRecordingNotFound
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
