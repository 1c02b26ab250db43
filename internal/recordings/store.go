package recordings

import (
	"context"
	"errors"
	"time"

	"github.com/aura-capture/backend/internal/models"
)

var (
	// ErrNotFound is returned when no recording has the requested id.
	ErrNotFound = errors.New("recording not found")
	// ErrDuplicateID is returned by Insert when the id is already taken.
	ErrDuplicateID = errors.New("recording id already exists")
	// ErrMisconfigured is returned by Create when Settings has no destination folder.
	ErrMisconfigured = errors.New("destination folder is not configured")
	// ErrAlreadyReady is returned by BeginUpload for a recording that is already ready.
	ErrAlreadyReady = errors.New("recording is already ready")
	// ErrUploadInProgress is returned by BeginUpload while another transfer holds the recording.
	ErrUploadInProgress = errors.New("recording upload already in progress")
)

// Store persists recordings. Implementations: PostgresStore, SQLiteStore.
type Store interface {
	Insert(ctx context.Context, rec *models.Recording) error
	Get(ctx context.Context, id string) (*models.Recording, error)
	Update(ctx context.Context, id string, patch Patch, now time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit int) ([]models.Recording, error)
	// IncrementViewCount must run as a read-increment-write transaction.
	IncrementViewCount(ctx context.Context, id string, now time.Time) (int64, error)
	// ClaimUpload moves the recording to uploading only if it is processing, error, or uploading
	// and last touched before staleBefore. It reports whether the row was claimed.
	ClaimUpload(ctx context.Context, id string, staleBefore, now time.Time) (bool, error)
	// MarkStaleUploads moves recordings stuck in uploading since before to error and returns their ids.
	MarkStaleUploads(ctx context.Context, before, now time.Time) ([]string, error)
}

// Patch is a partial update. Nil fields are left untouched; id and createdAt are not patchable.
type Patch struct {
	Title                *string
	Status               *models.RecordingStatus
	FinalFileRef         *string
	DestinationFolderRef *string
	HoldingPath          *string
	Duration             *float64
	FileSize             *int64
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return len(p.columns()) == 0
}

type column struct {
	name  string
	value any
}

// columns lists the assignments in a fixed order so generated SQL is stable.
func (p Patch) columns() []column {
	var cols []column
	if p.Title != nil {
		cols = append(cols, column{"title", *p.Title})
	}
	if p.Status != nil {
		cols = append(cols, column{"status", string(*p.Status)})
	}
	if p.FinalFileRef != nil {
		cols = append(cols, column{"final_file_ref", *p.FinalFileRef})
	}
	if p.DestinationFolderRef != nil {
		cols = append(cols, column{"destination_folder_ref", *p.DestinationFolderRef})
	}
	if p.HoldingPath != nil {
		cols = append(cols, column{"holding_path", *p.HoldingPath})
	}
	if p.Duration != nil {
		cols = append(cols, column{"duration", *p.Duration})
	}
	if p.FileSize != nil {
		cols = append(cols, column{"file_size", *p.FileSize})
	}
	return cols
}

// StatusPatch builds a patch that only moves the status.
func StatusPatch(s models.RecordingStatus) Patch {
	return Patch{Status: &s}
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T { return &v }

const recordingColumns = `id, title, status, final_file_ref, destination_folder_ref, holding_path, duration, file_size, view_count, created_at, updated_at`
