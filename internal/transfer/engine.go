package transfer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/models"
	"github.com/aura-capture/backend/internal/recordings"
	"github.com/aura-capture/backend/pkg/queue"
	"github.com/aura-capture/backend/pkg/storage"
)

const (
	pathDirect  = "direct"
	pathHolding = "holding"

	// failWriteTimeout bounds the best-effort error transition after a failed transfer.
	failWriteTimeout = 10 * time.Second
)

// Ledger is the recording ledger as seen by the engine.
type Ledger interface {
	Create(ctx context.Context, in recordings.CreateInput) (*models.Recording, error)
	Get(ctx context.Context, id string) (*models.Recording, error)
	Update(ctx context.Context, id string, patch recordings.Patch) error
	BeginUpload(ctx context.Context, id string, staleAfter time.Duration) error
	Delete(ctx context.Context, id string) error
}

// HoldingArea is the intermediate bucket clients upload to with a signed URL.
type HoldingArea interface {
	SignedWriteURL(ctx context.Context, path, contentType string, ttl time.Duration) (string, error)
	Stat(ctx context.Context, path string) (storage.ObjectInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// FinalStore is the shared-file store recordings end up in.
type FinalStore interface {
	Put(ctx context.Context, body io.Reader, name, contentType, folder string) (string, error)
	SetPubliclyReadable(ctx context.Context, ref string) error
	Delete(ctx context.Context, ref string) error
}

// Notifier receives every status transition, for push delivery to watchers.
type Notifier interface {
	Notify(ctx context.Context, recordingID string, view models.StatusView)
}

// CleanupQueue takes holding objects whose inline deletion failed.
type CleanupQueue interface {
	EnqueueHoldingCleanup(ctx context.Context, payload queue.HoldingCleanupPayload) error
}

// Config tunes the engine.
type Config struct {
	SignedURLTTL    time.Duration
	TransferTimeout time.Duration
}

// Result is the outcome of a successful transfer.
type Result struct {
	RecordingID  string                 `json:"recording_id"`
	Status       models.RecordingStatus `json:"status"`
	FinalFileRef string                 `json:"final_file_ref"`
	FileSize     int64                  `json:"file_size"`
}

// UploadURL is a time-limited write credential into the holding area.
type UploadURL struct {
	URL         string    `json:"upload_url"`
	HoldingPath string    `json:"holding_path"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Engine owns the status transitions of a recording: processing → uploading → ready | error.
type Engine struct {
	ledger   Ledger
	settings recordings.SettingsReader
	holding  HoldingArea
	final    FinalStore
	notifier Notifier
	cleanup  CleanupQueue
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates a transfer engine. holding may be nil when only direct uploads are served.
func NewEngine(ledger Ledger, settings recordings.SettingsReader, holding HoldingArea, final FinalStore, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = 15 * time.Minute
	}
	if cfg.TransferTimeout <= 0 {
		cfg.TransferTimeout = 15 * time.Minute
	}
	return &Engine{
		ledger:   ledger,
		settings: settings,
		holding:  holding,
		final:    final,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetNotifier sets the optional transition notifier.
func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

// SetCleanupQueue sets the optional queue for holding objects that could not be deleted inline.
func (e *Engine) SetCleanupQueue(q CleanupQueue) { e.cleanup = q }

// Create registers a new processing recording. The share link is usable immediately.
func (e *Engine) Create(ctx context.Context, in recordings.CreateInput) (*models.Recording, error) {
	rec, err := e.ledger.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	e.logger.Info("recording created", zap.String("recording_id", rec.ID), zap.String("destination_folder_ref", rec.DestinationFolderRef))
	return rec, nil
}

// UploadDirect streams body straight into the final store (path A).
func (e *Engine) UploadDirect(ctx context.Context, id string, body io.Reader, contentType string) (*Result, error) {
	start := e.now()
	rec, err := e.loadForUpload(ctx, id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.TransferTimeout)
	defer cancel()

	if err := e.begin(ctx, rec.ID); err != nil {
		return nil, err
	}

	res, err := e.forward(ctx, rec, body, NormalizeContentType(contentType))
	if err == nil {
		err = e.markReady(ctx, rec.ID, res)
	}
	if err != nil {
		e.fail(ctx, rec.ID, pathDirect, err)
		return nil, err
	}
	e.observe(pathDirect, start, res)
	return res, nil
}

// RequestUploadURL issues a signed write URL for the recording's holding path and records the path (path B).
func (e *Engine) RequestUploadURL(ctx context.Context, id, contentType string) (*UploadURL, error) {
	if e.holding == nil {
		return nil, failed("sign upload url", errors.New("holding area is not configured"))
	}
	rec, err := e.loadForUpload(ctx, id)
	if err != nil {
		return nil, err
	}
	contentType = NormalizeContentType(contentType)
	holdingPath := HoldingPath(rec.ID)
	expiresAt := e.now().Add(e.cfg.SignedURLTTL).UTC()

	url, err := e.holding.SignedWriteURL(ctx, holdingPath, contentType, e.cfg.SignedURLTTL)
	if err != nil {
		return nil, failed("sign upload url", err)
	}
	if rec.HoldingPath != holdingPath {
		if err := e.ledger.Update(ctx, rec.ID, recordings.Patch{HoldingPath: &holdingPath}); err != nil {
			return nil, failed("record holding path", err)
		}
	}
	e.logger.Info("holding upload url issued", zap.String("recording_id", rec.ID), zap.String("holding_path", holdingPath))
	return &UploadURL{URL: url, HoldingPath: holdingPath, ContentType: contentType, ExpiresAt: expiresAt}, nil
}

// Trigger forwards a finished holding-area upload into the final store (path B).
// Calling it after ready fails with ErrMissingUpload; calling it after error retries.
// The final object keeps the content type the holding upload was signed for.
func (e *Engine) Trigger(ctx context.Context, id string) (*Result, error) {
	start := e.now()
	rec, err := e.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.HoldingPath == "" {
		return nil, ErrMissingUpload
	}
	if err := e.requireFolder(ctx); err != nil {
		return nil, err
	}
	if e.holding == nil {
		return nil, failed("check holding upload", errors.New("holding area is not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.TransferTimeout)
	defer cancel()

	if err := e.begin(ctx, rec.ID); err != nil {
		if errors.Is(err, ErrAlreadyReady) {
			return nil, ErrMissingUpload
		}
		return nil, err
	}

	info, err := e.holding.Stat(ctx, rec.HoldingPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = ErrUploadNotFound
		} else {
			err = failed("check holding upload", err)
		}
		e.fail(ctx, rec.ID, pathHolding, err)
		return nil, err
	}

	res, err := e.pull(ctx, rec, NormalizeContentType(info.ContentType))
	if err == nil {
		err = e.markReady(ctx, rec.ID, res)
	}
	if err != nil {
		e.fail(ctx, rec.ID, pathHolding, err)
		return nil, err
	}
	e.observe(pathHolding, start, res)
	e.removeHolding(ctx, rec.ID, rec.HoldingPath)
	return res, nil
}

// Delete removes the final object and any holding object (best effort), then forgets the recording.
func (e *Engine) Delete(ctx context.Context, id string) error {
	rec, err := e.ledger.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.FinalFileRef != "" {
		if err := e.final.Delete(ctx, rec.FinalFileRef); err != nil {
			e.logger.Warn("delete final object failed", zap.String("recording_id", id), zap.String("final_ref", rec.FinalFileRef), zap.Error(err))
		}
	}
	if rec.HoldingPath != "" && e.holding != nil {
		if err := e.holding.Delete(ctx, rec.HoldingPath); err != nil {
			e.logger.Warn("delete holding object failed", zap.String("recording_id", id), zap.String("holding_path", rec.HoldingPath), zap.Error(err))
		}
	}
	if err := e.ledger.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Info("recording deleted", zap.String("recording_id", id))
	return nil
}

func (e *Engine) loadForUpload(ctx context.Context, id string) (*models.Recording, error) {
	rec, err := e.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.requireFolder(ctx); err != nil {
		return nil, err
	}
	if rec.Status == models.RecordingStatusReady {
		return nil, ErrAlreadyReady
	}
	return rec, nil
}

func (e *Engine) requireFolder(ctx context.Context) error {
	s, err := e.settings.Get(ctx)
	if err != nil {
		return failed("load settings", err)
	}
	if strings.TrimSpace(s.DestinationFolderRef) == "" {
		return ErrMisconfigured
	}
	return nil
}

func (e *Engine) pull(ctx context.Context, rec *models.Recording, contentType string) (*Result, error) {
	rc, err := e.holding.Open(ctx, rec.HoldingPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUploadNotFound
		}
		return nil, failed("download holding upload", err)
	}
	defer rc.Close()
	return e.forward(ctx, rec, rc, contentType)
}

// forward puts body into the destination folder and makes it link-readable.
func (e *Engine) forward(ctx context.Context, rec *models.Recording, body io.Reader, contentType string) (*Result, error) {
	br := bufio.NewReader(body)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyPayload
		}
		return nil, failed("read payload", err)
	}
	counter := &countingReader{r: br}
	name := FileName(rec.Title, rec.ID, contentType)

	ref, err := e.final.Put(ctx, counter, name, contentType, rec.DestinationFolderRef)
	if err != nil {
		return nil, failed("put final object", err)
	}
	if err := e.final.SetPubliclyReadable(ctx, ref); err != nil {
		if delErr := e.final.Delete(context.WithoutCancel(ctx), ref); delErr != nil {
			e.logger.Warn("delete unpublished final object failed", zap.String("recording_id", rec.ID), zap.String("final_ref", ref), zap.Error(delErr))
		}
		return nil, failed("set publicly readable", err)
	}
	return &Result{RecordingID: rec.ID, FinalFileRef: ref, FileSize: counter.n}, nil
}

// begin claims the recording for this transfer. Losing the claim leaves the recording untouched.
func (e *Engine) begin(ctx context.Context, id string) error {
	if err := e.ledger.BeginUpload(ctx, id, e.cfg.TransferTimeout); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyReady) || errors.Is(err, ErrUploadInProgress) {
			return err
		}
		return failed("mark uploading", err)
	}
	if e.notifier != nil {
		e.notifier.Notify(ctx, id, models.StatusView{Status: models.RecordingStatusUploading})
	}
	return nil
}

func (e *Engine) markReady(ctx context.Context, id string, res *Result) error {
	ready := models.RecordingStatusReady
	cleared := ""
	patch := recordings.Patch{
		Status:       &ready,
		FinalFileRef: &res.FinalFileRef,
		FileSize:     &res.FileSize,
		HoldingPath:  &cleared,
	}
	if err := e.transition(ctx, id, patch); err != nil {
		return failed("mark ready", err)
	}
	res.Status = ready
	e.logger.Info("recording ready", zap.String("recording_id", id), zap.String("final_ref", res.FinalFileRef), zap.Int64("file_size", res.FileSize))
	return nil
}

func (e *Engine) transition(ctx context.Context, id string, patch recordings.Patch) error {
	if err := e.ledger.Update(ctx, id, patch); err != nil {
		return err
	}
	if e.notifier != nil && patch.Status != nil {
		view := models.StatusView{Status: *patch.Status}
		if patch.FinalFileRef != nil {
			view.FinalFileRef = *patch.FinalFileRef
		}
		e.notifier.Notify(ctx, id, view)
	}
	return nil
}

// fail records the error state. Its own failure is logged and swallowed so cause is what the caller sees.
func (e *Engine) fail(ctx context.Context, id, path string, cause error) {
	transfersTotal.WithLabelValues(path, "error").Inc()
	e.logger.Error("transfer failed", zap.String("recording_id", id), zap.String("path", path), zap.Error(cause))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()
	if err := e.transition(ctx, id, recordings.StatusPatch(models.RecordingStatusError)); err != nil {
		e.logger.Warn("mark recording error failed", zap.String("recording_id", id), zap.Error(err))
	}
}

// removeHolding deletes the transferred holding object; on failure the object is queued or left to bucket lifecycle rules.
func (e *Engine) removeHolding(ctx context.Context, id, holdingPath string) {
	ctx = context.WithoutCancel(ctx)
	err := e.holding.Delete(ctx, holdingPath)
	if err == nil {
		return
	}
	e.logger.Warn("delete holding object failed", zap.String("recording_id", id), zap.String("holding_path", holdingPath), zap.Error(err))
	if e.cleanup == nil {
		return
	}
	if qErr := e.cleanup.EnqueueHoldingCleanup(ctx, queue.HoldingCleanupPayload{RecordingID: id, HoldingPath: holdingPath}); qErr != nil {
		e.logger.Warn("enqueue holding cleanup failed", zap.String("recording_id", id), zap.Error(qErr))
	}
}

func (e *Engine) observe(path string, start time.Time, res *Result) {
	transfersTotal.WithLabelValues(path, "ready").Inc()
	transferBytes.Add(float64(res.FileSize))
	transferDuration.WithLabelValues(path).Observe(e.now().Sub(start).Seconds())
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
