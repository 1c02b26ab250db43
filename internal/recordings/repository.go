package recordings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-capture/backend/internal/models"
)

// PostgresStore handles recording persistence in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a recordings store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Insert creates a new recording row. Returns ErrDuplicateID when the id is taken.
func (r *PostgresStore) Insert(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings (` + recordingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, q, rec.ID, rec.Title, string(rec.Status), rec.FinalFileRef, rec.DestinationFolderRef,
		rec.HoldingPath, rec.Duration, rec.FileSize, rec.ViewCount, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateID
	}
	return nil
}

// Get returns a recording by id.
func (r *PostgresStore) Get(ctx context.Context, id string) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// Update merges patch into the row and refreshes updated_at.
func (r *PostgresStore) Update(ctx context.Context, id string, patch Patch, now time.Time) error {
	cols := patch.columns()
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c.name, i+1))
		args = append(args, c.value)
	}
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)+1))
	args = append(args, now)
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE recordings SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the recording row.
func (r *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM recordings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the newest recordings first.
func (r *PostgresStore) List(ctx context.Context, limit int) ([]models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM recordings ORDER BY created_at DESC, id LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()
	list := make([]models.Recording, 0, limit)
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// IncrementViewCount locks the row, increments view_count and commits.
func (r *PostgresStore) IncrementViewCount(ctx context.Context, id string, now time.Time) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var count int64
	err = tx.QueryRow(ctx, `SELECT view_count FROM recordings WHERE id = $1 FOR UPDATE`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("read view count: %w", err)
	}
	count++
	if _, err := tx.Exec(ctx, `UPDATE recordings SET view_count = $1, updated_at = $2 WHERE id = $3`, count, now, id); err != nil {
		return 0, fmt.Errorf("write view count: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit view count: %w", err)
	}
	return count, nil
}

// ClaimUpload is a conditional UPDATE; concurrent callers race on the row lock and one wins.
func (r *PostgresStore) ClaimUpload(ctx context.Context, id string, staleBefore, now time.Time) (bool, error) {
	const q = `UPDATE recordings SET status = $1, updated_at = $2
		WHERE id = $3 AND (status IN ($4, $5) OR (status = $1 AND updated_at < $6))`
	tag, err := r.pool.Exec(ctx, q, string(models.RecordingStatusUploading), now, id,
		string(models.RecordingStatusProcessing), string(models.RecordingStatusError), staleBefore)
	if err != nil {
		return false, fmt.Errorf("claim upload: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkStaleUploads moves uploading rows last touched before the cutoff to error.
func (r *PostgresStore) MarkStaleUploads(ctx context.Context, before, now time.Time) ([]string, error) {
	const q = `UPDATE recordings SET status = $1, updated_at = $2
		WHERE status = $3 AND updated_at < $4 RETURNING id`
	rows, err := r.pool.Query(ctx, q, string(models.RecordingStatusError), now, string(models.RecordingStatusUploading), before)
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

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	var status string
	if err := row.Scan(&rec.ID, &rec.Title, &status, &rec.FinalFileRef, &rec.DestinationFolderRef, &rec.HoldingPath,
		&rec.Duration, &rec.FileSize, &rec.ViewCount, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Status = models.RecordingStatus(status)
	return &rec, nil
}
