package settings

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

// Store reads and writes the settings singleton. Get returns DefaultSettings before the first Put.
type Store interface {
	Get(ctx context.Context) (models.Settings, error)
	Put(ctx context.Context, s models.Settings) error
}

// PostgresStore keeps the singleton in the settings table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a settings store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the singleton.
func (r *PostgresStore) Get(ctx context.Context) (models.Settings, error) {
	const q = `SELECT destination_folder_ref, default_quality, default_mic_enabled, default_webcam_enabled, updated_at
		FROM settings WHERE key = $1`
	var s models.Settings
	err := r.pool.QueryRow(ctx, q, models.SettingsKey).Scan(&s.DestinationFolderRef, &s.DefaultQuality,
		&s.DefaultMicEnabled, &s.DefaultWebcamEnabled, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DefaultSettings(), nil
		}
		return models.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// Put replaces the singleton.
func (r *PostgresStore) Put(ctx context.Context, s models.Settings) error {
	const q = `INSERT INTO settings (key, destination_folder_ref, default_quality, default_mic_enabled, default_webcam_enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET destination_folder_ref = EXCLUDED.destination_folder_ref,
			default_quality = EXCLUDED.default_quality, default_mic_enabled = EXCLUDED.default_mic_enabled,
			default_webcam_enabled = EXCLUDED.default_webcam_enabled, updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, q, models.SettingsKey, s.DestinationFolderRef, s.DefaultQuality,
		s.DefaultMicEnabled, s.DefaultWebcamEnabled, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}

// SQLiteStore keeps the singleton in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a settings store backed by db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Get returns the singleton.
func (s *SQLiteStore) Get(ctx context.Context) (models.Settings, error) {
	const q = `SELECT destination_folder_ref, default_quality, default_mic_enabled, default_webcam_enabled, updated_at
		FROM settings WHERE key = ?`
	var out models.Settings
	var updated int64
	err := s.db.QueryRowContext(ctx, q, models.SettingsKey).Scan(&out.DestinationFolderRef, &out.DefaultQuality,
		&out.DefaultMicEnabled, &out.DefaultWebcamEnabled, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultSettings(), nil
		}
		return models.Settings{}, fmt.Errorf("get settings: %w", err)
	}
	out.UpdatedAt = time.Unix(0, updated).UTC()
	return out, nil
}

// Put replaces the singleton.
func (s *SQLiteStore) Put(ctx context.Context, in models.Settings) error {
	const q = `INSERT INTO settings (key, destination_folder_ref, default_quality, default_mic_enabled, default_webcam_enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET destination_folder_ref = excluded.destination_folder_ref,
			default_quality = excluded.default_quality, default_mic_enabled = excluded.default_mic_enabled,
			default_webcam_enabled = excluded.default_webcam_enabled, updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, q, models.SettingsKey, in.DestinationFolderRef, in.DefaultQuality,
		in.DefaultMicEnabled, in.DefaultWebcamEnabled, in.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}
