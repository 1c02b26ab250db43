package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-capture/backend/internal/models"
	"github.com/aura-capture/backend/internal/recordings"
	"github.com/aura-capture/backend/pkg/database"
)

type folderSettings struct{}

func (folderSettings) Get(context.Context) (models.Settings, error) {
	s := models.DefaultSettings()
	s.DestinationFolderRef = "F1"
	return s, nil
}

func newTestLedger(t *testing.T) (*Ledger, *models.Recording) {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "analytics.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(ctx, db))

	recs := recordings.NewLedger(recordings.NewSQLiteStore(db), folderSettings{}, nil)
	rec, err := recs.Create(ctx, recordings.CreateInput{Title: "Demo", Duration: 100})
	require.NoError(t, err)
	return NewLedger(NewSQLiteStore(db), recs, nil), rec
}

func TestLedger_RecordMergesHeartbeats(t *testing.T) {
	l, rec := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	s, err := l.Record(ctx, rec.ID, Event{Type: EventStart, ViewerID: "viewer-1"})
	require.NoError(t, err)
	require.NotEmpty(t, s.SessionID)
	assert.Equal(t, 1, s.EventCount)

	l.now = func() time.Time { return base.Add(time.Minute) }
	_, err = l.Record(ctx, rec.ID, Event{SessionID: s.SessionID, Type: EventProgress, Position: 60, WatchedSeconds: 60})
	require.NoError(t, err)

	l.now = func() time.Time { return base.Add(2 * time.Minute) }
	s, err = l.Record(ctx, rec.ID, Event{SessionID: s.SessionID, Type: EventEnd, Position: 30, WatchedSeconds: 45})
	require.NoError(t, err)

	assert.Equal(t, 3, s.EventCount)
	assert.Equal(t, 60.0, s.WatchedSeconds)
	assert.Equal(t, 60.0, s.MaxPosition)
	assert.InDelta(t, 60.0, s.CompletionRate, 1e-9)
	require.NotNil(t, s.EndedAt)
	assert.True(t, s.EndedAt.Equal(base.Add(2*time.Minute)))
	assert.True(t, s.StartedAt.Equal(base))
	assert.Equal(t, "viewer-1", s.ViewerID)
}

func TestLedger_RecordRejectsBadEvents(t *testing.T) {
	l, rec := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, rec.ID, Event{Type: "pause"})
	require.ErrorIs(t, err, ErrInvalidEvent)
	_, err = l.Record(ctx, rec.ID, Event{Type: EventProgress, Position: 3})
	require.ErrorIs(t, err, ErrInvalidEvent)
	_, err = l.Record(ctx, rec.ID, Event{Type: EventStart, Position: -1})
	require.ErrorIs(t, err, ErrInvalidEvent)
	_, err = l.Record(ctx, "missing1", Event{Type: EventStart})
	require.ErrorIs(t, err, recordings.ErrNotFound)
}

func TestLedger_Summary(t *testing.T) {
	l, rec := newTestLedger(t)
	ctx := context.Background()

	for _, ev := range []Event{
		{SessionID: "s1", ViewerID: "alice", Type: EventStart},
		{SessionID: "s1", ViewerID: "alice", Type: EventEnd, Position: 100, WatchedSeconds: 100},
		{SessionID: "s2", ViewerID: "alice", Type: EventStart},
		{SessionID: "s2", ViewerID: "alice", Type: EventProgress, Position: 15, WatchedSeconds: 15},
		{SessionID: "s3", ViewerID: "bob", Type: EventStart},
		{SessionID: "s3", ViewerID: "bob", Type: EventProgress, Position: 55, WatchedSeconds: 50},
	} {
		_, err := l.Record(ctx, rec.ID, ev)
		require.NoError(t, err)
	}

	sum, err := l.Summary(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Sessions)
	assert.Equal(t, 2, sum.UniqueViewers)
	assert.InDelta(t, 55.0, sum.AvgWatchSeconds, 1e-9)
	assert.InDelta(t, (100.0+15+55)/3, sum.AvgCompletionRate, 1e-9)
	assert.Equal(t, 1, sum.DropOff[1].Sessions)
	assert.Equal(t, 1, sum.DropOff[5].Sessions)
	assert.Equal(t, 1, sum.DropOff[9].Sessions)
}

func TestStore_SessionOfAnotherRecording(t *testing.T) {
	l, rec := newTestLedger(t)
	ctx := context.Background()
	_, err := l.Record(ctx, rec.ID, Event{SessionID: "shared", Type: EventStart})
	require.NoError(t, err)

	_, err = l.store.Upsert(ctx, Progress{SessionID: "shared", RecordingID: "other000", ViewerID: "v", At: time.Now()})
	require.ErrorIs(t, err, ErrSessionMismatch)
}

func TestAggregate_Empty(t *testing.T) {
	out := Aggregate("abc12345", 7, nil)
	assert.Equal(t, int64(7), out.ViewCount)
	assert.Zero(t, out.Sessions)
	require.Len(t, out.DropOff, 10)
	assert.Equal(t, 0, out.DropOff[0].FromPercent)
	assert.Equal(t, 100, out.DropOff[9].ToPercent)
}

func TestAggregate_PercentBuckets(t *testing.T) {
	sum := Aggregate("abc12345", 4, []models.ViewerSession{
		{ViewerID: "a", CompletionRate: 9.99},
		{ViewerID: "b", CompletionRate: 10},
		{ViewerID: "c", CompletionRate: 99.5},
		{ViewerID: "d", CompletionRate: 100},
	})
	assert.InDelta(t, (9.99+10+99.5+100)/4, sum.AvgCompletionRate, 1e-9)
	assert.Equal(t, 1, sum.DropOff[0].Sessions)
	assert.Equal(t, 1, sum.DropOff[1].Sessions)
	assert.Equal(t, 2, sum.DropOff[9].Sessions)
	assert.Equal(t, 90, sum.DropOff[9].FromPercent)
}

func TestCompletion_ClampsToPercent(t *testing.T) {
	assert.Equal(t, 0.0, completion(30, 0))
	assert.InDelta(t, 25.0, completion(15, 60), 1e-9)
	assert.Equal(t, 100.0, completion(90, 60))
}
