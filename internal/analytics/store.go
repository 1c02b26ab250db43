package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-capture/backend/internal/models"
)

// ErrSessionMismatch is returned when a session id already belongs to another recording.
var ErrSessionMismatch = errors.New("viewer session belongs to another recording")

// Progress is one heartbeat folded into a viewer session.
type Progress struct {
	SessionID      string
	RecordingID    string
	ViewerID       string
	WatchedSeconds float64
	Position       float64
	CompletionRate float64
	Ended          bool
	At             time.Time
}

// Store persists viewer sessions. Upsert keeps the maximum of every progress measure,
// so heartbeats arriving out of order never move a session backwards.
type Store interface {
	Upsert(ctx context.Context, p Progress) (*models.ViewerSession, error)
	ListByRecording(ctx context.Context, recordingID string) ([]models.ViewerSession, error)
}

// PostgresStore keeps viewer sessions in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a viewer session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Upsert inserts the session on its first event and merges later ones.
func (r *PostgresStore) Upsert(ctx context.Context, p Progress) (*models.ViewerSession, error) {
	const q = `INSERT INTO viewer_sessions (session_id, recording_id, viewer_id, started_at, ended_at,
			watched_seconds, max_position, completion_rate, event_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $4)
		ON CONFLICT (session_id) DO UPDATE SET
			ended_at = COALESCE(EXCLUDED.ended_at, viewer_sessions.ended_at),
			watched_seconds = GREATEST(viewer_sessions.watched_seconds, EXCLUDED.watched_seconds),
			max_position = GREATEST(viewer_sessions.max_position, EXCLUDED.max_position),
			completion_rate = GREATEST(viewer_sessions.completion_rate, EXCLUDED.completion_rate),
			event_count = viewer_sessions.event_count + 1,
			updated_at = EXCLUDED.updated_at
		WHERE viewer_sessions.recording_id = EXCLUDED.recording_id
		RETURNING session_id, recording_id, viewer_id, started_at, ended_at, watched_seconds, max_position,
			completion_rate, event_count, updated_at`
	var endedAt *time.Time
	if p.Ended {
		endedAt = &p.At
	}
	var s models.ViewerSession
	err := r.pool.QueryRow(ctx, q, p.SessionID, p.RecordingID, p.ViewerID, p.At, endedAt,
		p.WatchedSeconds, p.Position, p.CompletionRate).Scan(&s.SessionID, &s.RecordingID, &s.ViewerID, &s.StartedAt,
		&s.EndedAt, &s.WatchedSeconds, &s.MaxPosition, &s.CompletionRate, &s.EventCount, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("upsert viewer session: %w", err)
	}
	return &s, nil
}

// ListByRecording returns sessions of a recording, newest first.
func (r *PostgresStore) ListByRecording(ctx context.Context, recordingID string) ([]models.ViewerSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, recording_id, viewer_id, started_at, ended_at, watched_seconds, max_position,
			completion_rate, event_count, updated_at
		 FROM viewer_sessions WHERE recording_id = $1 ORDER BY started_at DESC`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("list viewer sessions: %w", err)
	}
	defer rows.Close()
	var list []models.ViewerSession
	for rows.Next() {
		var s models.ViewerSession
		if err := rows.Scan(&s.SessionID, &s.RecordingID, &s.ViewerID, &s.StartedAt, &s.EndedAt, &s.WatchedSeconds,
			&s.MaxPosition, &s.CompletionRate, &s.EventCount, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// SQLiteStore keeps viewer sessions in SQLite. Timestamps are UTC unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a viewer session store backed by db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Upsert inserts the session on its first event and merges later ones.
func (s *SQLiteStore) Upsert(ctx context.Context, p Progress) (*models.ViewerSession, error) {
	const q = `INSERT INTO viewer_sessions (session_id, recording_id, viewer_id, started_at, ended_at,
			watched_seconds, max_position, completion_rate, event_count, updated_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, 1, ?4)
		ON CONFLICT (session_id) DO UPDATE SET
			ended_at = COALESCE(excluded.ended_at, viewer_sessions.ended_at),
			watched_seconds = MAX(viewer_sessions.watched_seconds, excluded.watched_seconds),
			max_position = MAX(viewer_sessions.max_position, excluded.max_position),
			completion_rate = MAX(viewer_sessions.completion_rate, excluded.completion_rate),
			event_count = viewer_sessions.event_count + 1,
			updated_at = excluded.updated_at
		WHERE viewer_sessions.recording_id = excluded.recording_id
		RETURNING session_id, recording_id, viewer_id, started_at, ended_at, watched_seconds, max_position,
			completion_rate, event_count, updated_at`
	var endedAt sql.NullInt64
	if p.Ended {
		endedAt = sql.NullInt64{Int64: p.At.UnixNano(), Valid: true}
	}
	row := s.db.QueryRowContext(ctx, q, p.SessionID, p.RecordingID, p.ViewerID, p.At.UnixNano(), endedAt,
		p.WatchedSeconds, p.Position, p.CompletionRate)
	out, err := scanSQLiteSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("upsert viewer session: %w", err)
	}
	return out, nil
}

// ListByRecording returns sessions of a recording, newest first.
func (s *SQLiteStore) ListByRecording(ctx context.Context, recordingID string) ([]models.ViewerSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, recording_id, viewer_id, started_at, ended_at, watched_seconds, max_position,
			completion_rate, event_count, updated_at
		 FROM viewer_sessions WHERE recording_id = ? ORDER BY started_at DESC`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("list viewer sessions: %w", err)
	}
	defer rows.Close()
	var list []models.ViewerSession
	for rows.Next() {
		v, err := scanSQLiteSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSession(row rowScanner) (*models.ViewerSession, error) {
	var v models.ViewerSession
	var started, updated int64
	var ended sql.NullInt64
	if err := row.Scan(&v.SessionID, &v.RecordingID, &v.ViewerID, &started, &ended, &v.WatchedSeconds,
		&v.MaxPosition, &v.CompletionRate, &v.EventCount, &updated); err != nil {
		return nil, err
	}
	v.StartedAt = time.Unix(0, started).UTC()
	v.UpdatedAt = time.Unix(0, updated).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		v.EndedAt = &t
	}
	return &v, nil
}
