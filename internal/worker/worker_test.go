package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-capture/backend/internal/models"
	"github.com/aura-capture/backend/internal/recordings"
	"github.com/aura-capture/backend/pkg/database"
	"github.com/aura-capture/backend/pkg/queue"
	"github.com/aura-capture/backend/pkg/storage"
)

func newQueue(t *testing.T) *queue.Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return queue.NewQueue(client, nil)
}

type brokenHolding struct{}

func (brokenHolding) Delete(context.Context, string) error { return errors.New("bucket unavailable") }

func TestCleanupProcessor_DeletesQueuedObject(t *testing.T) {
	q := newQueue(t)
	holding := storage.NewMemory("holding")
	holding.PutObject("uploads/abc12345.webm", "video/webm", []byte("orphan"))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, q.EnqueueHoldingCleanup(ctx, queue.HoldingCleanupPayload{RecordingID: "abc12345", HoldingPath: "uploads/abc12345.webm"}))
	p := NewCleanupProcessor(holding, q, nil)
	go p.Run(ctx)

	require.Eventually(t, func() bool { return holding.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestCleanupProcessor_FailingJobsEndInDLQ(t *testing.T) {
	q := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, q.EnqueueHoldingCleanup(ctx, queue.HoldingCleanupPayload{RecordingID: "abc12345", HoldingPath: "uploads/abc12345.webm"}))
	p := NewCleanupProcessor(brokenHolding{}, q, nil)
	p.SetBackoff(time.Millisecond)
	go p.Run(ctx)

	require.Eventually(t, func() bool {
		n, err := q.Len(ctx, queue.QueueDLQ)
		return err == nil && n == 1
	}, 5*time.Second, 20*time.Millisecond)
	pending, err := q.Len(ctx, queue.QueueHoldingCleanup)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestCleanupProcessor_RejectsUnknownJob(t *testing.T) {
	p := NewCleanupProcessor(storage.NewMemory("holding"), nil, nil)
	err := p.Process(context.Background(), &queue.Job{ID: "j1", Type: "transcode"})
	require.Error(t, err)
}

type folderSettings struct{}

func (folderSettings) Get(context.Context) (models.Settings, error) {
	s := models.DefaultSettings()
	s.DestinationFolderRef = "F1"
	return s, nil
}

type collectNotifier struct {
	mu    sync.Mutex
	views map[string]models.StatusView
}

func (c *collectNotifier) Notify(_ context.Context, id string, view models.StatusView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[id] = view
}

func TestStaleReaper_Sweep(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "worker.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(ctx, db))
	ledger := recordings.NewLedger(recordings.NewSQLiteStore(db), folderSettings{}, nil)

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ledger.SetClock(func() time.Time { return base })
	wedged, err := ledger.Create(ctx, recordings.CreateInput{Title: "wedged"})
	require.NoError(t, err)
	require.NoError(t, ledger.Update(ctx, wedged.ID, recordings.StatusPatch(models.RecordingStatusUploading)))
	done, err := ledger.Create(ctx, recordings.CreateInput{Title: "done"})
	require.NoError(t, err)
	require.NoError(t, ledger.Update(ctx, done.ID, recordings.StatusPatch(models.RecordingStatusReady)))

	ledger.SetClock(func() time.Time { return base.Add(time.Hour) })
	notes := &collectNotifier{views: make(map[string]models.StatusView)}
	reaper := NewStaleReaper(ledger, 30*time.Minute, time.Minute, nil)
	reaper.SetNotifier(notes)

	ids, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{wedged.ID}, ids)
	assert.Equal(t, models.RecordingStatusError, notes.views[wedged.ID].Status)

	got, err := ledger.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecordingStatusReady, got.Status)

	ids, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStaleReaper_Disabled(t *testing.T) {
	reaper := NewStaleReaper(nil, 0, 0, nil)
	assert.False(t, reaper.Enabled())
	ids, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Nil(t, ids)
	reaper.Run(context.Background())
}
