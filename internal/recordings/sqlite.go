package recordings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aura-capture/backend/internal/models"
)

// SQLiteStore persists recordings in SQLite. Timestamps are stored as UTC unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a recordings store backed by db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert creates a new recording row. Returns ErrDuplicateID when the id is taken.
func (s *SQLiteStore) Insert(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings (` + recordingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, q, rec.ID, rec.Title, string(rec.Status), rec.FinalFileRef, rec.DestinationFolderRef,
		rec.HoldingPath, rec.Duration, rec.FileSize, rec.ViewCount, rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicateID
	}
	return nil
}

// Get returns a recording by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE id = ?`
	rec, err := scanSQLiteRecording(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// Update merges patch into the row and refreshes updated_at.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch Patch, now time.Time) error {
	cols := patch.columns()
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, c := range cols {
		sets = append(sets, c.name+" = ?")
		args = append(args, c.value)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now.UnixNano(), id)
	res, err := s.db.ExecContext(ctx, `UPDATE recordings SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the recording row.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the newest recordings first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings ORDER BY created_at DESC, id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()
	list := make([]models.Recording, 0, limit)
	for rows.Next() {
		rec, err := scanSQLiteRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// IncrementViewCount reads and rewrites view_count inside one transaction.
func (s *SQLiteStore) IncrementViewCount(ctx context.Context, id string, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int64
	if err := tx.QueryRowContext(ctx, `SELECT view_count FROM recordings WHERE id = ?`, id).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("read view count: %w", err)
	}
	count++
	if _, err := tx.ExecContext(ctx, `UPDATE recordings SET view_count = ?, updated_at = ? WHERE id = ?`, count, now.UnixNano(), id); err != nil {
		return 0, fmt.Errorf("write view count: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit view count: %w", err)
	}
	return count, nil
}

// ClaimUpload is a conditional UPDATE; SQLite serializes writers so one caller wins.
func (s *SQLiteStore) ClaimUpload(ctx context.Context, id string, staleBefore, now time.Time) (bool, error) {
	const q = `UPDATE recordings SET status = ?, updated_at = ?
		WHERE id = ? AND (status IN (?, ?) OR (status = ? AND updated_at < ?))`
	uploading := string(models.RecordingStatusUploading)
	res, err := s.db.ExecContext(ctx, q, uploading, now.UnixNano(), id,
		string(models.RecordingStatusProcessing), string(models.RecordingStatusError), uploading, staleBefore.UnixNano())
	if err != nil {
		return false, fmt.Errorf("claim upload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim upload: %w", err)
	}
	return n == 1, nil
}

// MarkStaleUploads moves uploading rows last touched before the cutoff to error.
func (s *SQLiteStore) MarkStaleUploads(ctx context.Context, before, now time.Time) ([]string, error) {
	const q = `UPDATE recordings SET status = ?, updated_at = ?
		WHERE status = ? AND updated_at < ? RETURNING id`
	rows, err := s.db.QueryContext(ctx, q, string(models.RecordingStatusError), now.UnixNano(),
		string(models.RecordingStatusUploading), before.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("mark stale uploads: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecording(row rowScanner) (*models.Recording, error) {
	var rec models.Recording
	var status string
	var created, updated int64
	if err := row.Scan(&rec.ID, &rec.Title, &status, &rec.FinalFileRef, &rec.DestinationFolderRef, &rec.HoldingPath,
		&rec.Duration, &rec.FileSize, &rec.ViewCount, &created, &updated); err != nil {
		return nil, err
	}
	rec.Status = models.RecordingStatus(status)
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return &rec, nil
}
