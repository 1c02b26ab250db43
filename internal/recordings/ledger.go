package recordings

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/models"
)

const (
	// DefaultListLimit is used when List is called with a non-positive limit.
	DefaultListLimit = 50
	// MaxListLimit bounds List.
	MaxListLimit = 200

	idLength   = 8
	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	idAttempts = 5
)

// SettingsReader is the read side of the settings singleton.
type SettingsReader interface {
	Get(ctx context.Context) (models.Settings, error)
}

// CreateInput holds the client-supplied fields of a new recording.
type CreateInput struct {
	Title    string
	Duration float64
}

// Ledger is the authoritative record of every recording and its lifecycle state.
type Ledger struct {
	store    Store
	settings SettingsReader
	logger   *zap.Logger
	now      func() time.Time
	newID    func() (string, error)
}

// NewLedger creates a ledger over store. settings is consulted on Create.
func NewLedger(store Store, settings SettingsReader, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:    store,
		settings: settings,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    NewID,
	}
}

// SetClock overrides the time source.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// SetIDGenerator overrides id allocation.
func (l *Ledger) SetIDGenerator(fn func() (string, error)) { l.newID = fn }

// Create stamps the destination folder from Settings and persists a processing recording.
func (l *Ledger) Create(ctx context.Context, in CreateInput) (*models.Recording, error) {
	settings, err := l.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	folder := strings.TrimSpace(settings.DestinationFolderRef)
	if folder == "" {
		return nil, ErrMisconfigured
	}
	if in.Duration < 0 {
		in.Duration = 0
	}

	now := l.now()
	for attempt := 0; attempt < idAttempts; attempt++ {
		id, err := l.newID()
		if err != nil {
			return nil, fmt.Errorf("generate id: %w", err)
		}
		rec := &models.Recording{
			ID:                   id,
			Title:                strings.TrimSpace(in.Title),
			Status:               models.RecordingStatusProcessing,
			DestinationFolderRef: folder,
			Duration:             in.Duration,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		err = l.store.Insert(ctx, rec)
		if errors.Is(err, ErrDuplicateID) {
			l.logger.Warn("recording id collision, regenerating", zap.String("recording_id", id))
			continue
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, fmt.Errorf("allocate recording id: %w", ErrDuplicateID)
}

// Get returns the recording or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, id string) (*models.Recording, error) {
	return l.store.Get(ctx, id)
}

// Update merges patch and refreshes updatedAt. An empty patch only verifies existence.
func (l *Ledger) Update(ctx context.Context, id string, patch Patch) error {
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("invalid status %q", *patch.Status)
	}
	if patch.Empty() {
		_, err := l.store.Get(ctx, id)
		return err
	}
	return l.store.Update(ctx, id, patch, l.now())
}

// BeginUpload claims id for one transfer. A recording already uploading can only be reclaimed once
// it has been untouched for staleAfter.
func (l *Ledger) BeginUpload(ctx context.Context, id string, staleAfter time.Duration) error {
	now := l.now()
	claimed, err := l.store.ClaimUpload(ctx, id, now.Add(-staleAfter), now)
	if err != nil {
		return err
	}
	if claimed {
		return nil
	}
	rec, err := l.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Status == models.RecordingStatusReady {
		return ErrAlreadyReady
	}
	return ErrUploadInProgress
}

// Delete forgets the recording. Storage cleanup is the caller's job and happens first.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	return l.store.Delete(ctx, id)
}

// List returns up to limit recordings, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]models.Recording, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return l.store.List(ctx, limit)
}

// IncrementViewCount atomically adds one view and returns the new count.
func (l *Ledger) IncrementViewCount(ctx context.Context, id string) (int64, error) {
	return l.store.IncrementViewCount(ctx, id, l.now())
}

// MarkStaleUploads fails recordings that have been uploading for longer than after.
func (l *Ledger) MarkStaleUploads(ctx context.Context, after time.Duration) ([]string, error) {
	now := l.now()
	return l.store.MarkStaleUploads(ctx, now.Add(-after), now)
}

// NewID returns an 8 character lowercase alphanumeric id.
func NewID() (string, error) {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(buf), nil
}

// ValidID reports whether id has the shape produced by NewID.
func ValidID(id string) bool {
	if len(id) != idLength {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune(idAlphabet, r) {
			return false
		}
	}
	return true
}
