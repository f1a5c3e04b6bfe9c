package postgres

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

// PostgresRecordingStore implements the store.RecordingStore interface
// using a PostgreSQL database as the storage backend.
type PostgresRecordingStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

var _ store.RecordingStore = (*PostgresRecordingStore)(nil)

// NewPostgresRecordingStore creates a new PostgresRecordingStore.
// It accepts a database connection or transaction that should be managed by the caller.
func NewPostgresRecordingStore(db store.DBTX, log *slog.Logger) *PostgresRecordingStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresRecordingStore{
		db:     db,
		logger: log.With(slog.String("component", "recording_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a new store instance that uses the provided transaction.
func (s *PostgresRecordingStore) WithTx(tx *sql.Tx) *PostgresRecordingStore {
	return &PostgresRecordingStore{db: tx, logger: s.logger, now: s.now}
}

func scanRecording(row rowScanner) (*domain.Recording, error) {
	var (
		r        domain.Recording
		status   string
		metadata []byte
	)
	if err := row.Scan(&r.UniqueID, &r.MeetingID, &r.RecordingID, &r.RoomName, &r.RoomURL,
		&status, &metadata, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = domain.RecordingStatus(status)
	r.Metadata = domain.Metadata{}
	if len(metadata) > 0 {
		if err := sonic.Unmarshal(metadata, &r.Metadata); err != nil {
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

// Create implements store.RecordingStore.Create.
// Returns store.ErrInvalidEntity on validation failure and store.ErrDuplicate
// when the unique ID is taken.
func (s *PostgresRecordingStore) Create(ctx context.Context, rec *domain.Recording) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := rec.Validate(); err != nil {
		log.Warn("recording validation failed during create",
			slog.String("error", err.Error()),
			slog.String("unique_id", rec.UniqueID))
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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recordings (`+recordingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)`,
		rec.UniqueID, rec.MeetingID, rec.RecordingID, rec.RoomName, rec.RoomURL,
		rec.Status, metadata, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		log.Error("failed to create recording",
			slog.String("error", err.Error()),
			slog.String("unique_id", rec.UniqueID))
		return fmt.Errorf("failed to create recording: %w", MapError(err))
	}

	log.Debug("recording created",
		slog.String("unique_id", rec.UniqueID),
		slog.String("status", string(rec.Status)))
	return nil
}

// GetByUniqueID implements store.RecordingStore.GetByUniqueID.
func (s *PostgresRecordingStore) GetByUniqueID(ctx context.Context, uniqueID string) (*domain.Recording, error) {
	r, err := scanRecording(s.db.QueryRowContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE unique_id = $1`, uniqueID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrRecordingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recording %s: %w", uniqueID, err)
	}
	return r, nil
}

// FindLatestByRoom implements store.RecordingStore.FindLatestByRoom.
func (s *PostgresRecordingStore) FindLatestByRoom(
	ctx context.Context,
	roomName string,
	statuses ...domain.RecordingStatus,
) (*domain.Recording, error) {
	args := []any{roomName}
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE room_name = $1`
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(args)+1, len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	r, err := scanRecording(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrRecordingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recording in room %s: %w", roomName, err)
	}
	return r, nil
}

// List implements store.RecordingStore.List.
func (s *PostgresRecordingStore) List(ctx context.Context, status domain.RecordingStatus) ([]*domain.Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

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

// UpdateStatus implements store.RecordingStore.UpdateStatus.
// The allowed source statuses are part of the WHERE clause.
func (s *PostgresRecordingStore) UpdateStatus(
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

	args := []any{status, s.now(), meta, uniqueID}
	for _, src := range sources {
		args = append(args, src)
	}
	query := `UPDATE recordings
		SET status = $1, updated_at = $2, metadata = COALESCE($3::jsonb, metadata)
		WHERE unique_id = $4 AND status IN (` + placeholders(5, len(sources)) + `)`

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update recording %s: %w", uniqueID, MapError(err))
	}
	if err := CheckRowsAffected(result, store.ErrRecordingNotFound); err == nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("recording status updated",
			slog.String("unique_id", uniqueID),
			slog.String("status", string(status)))
		return nil
	} else if !errors.Is(err, store.ErrRecordingNotFound) {
		return err
	}

	current, err := s.GetByUniqueID(ctx, uniqueID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: recording %s cannot move from %s to %s",
		store.ErrInvalidTransition, uniqueID, current.Status, status)
}

// SetRecordingID implements store.RecordingStore.SetRecordingID.
func (s *PostgresRecordingStore) SetRecordingID(ctx context.Context, uniqueID, recordingID string) error {
	if recordingID == "" {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrEmptyRecordingID)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE recordings SET recording_id = $1, updated_at = $2 WHERE unique_id = $3`,
		recordingID, s.now(), uniqueID)
	if err != nil {
		return fmt.Errorf("failed to set recording id for %s: %w", uniqueID, MapError(err))
	}
	return CheckRowsAffected(result, store.ErrRecordingNotFound)
}

// placeholders renders n positional parameters starting at $start.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}
