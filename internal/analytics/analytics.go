package analytics

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/models"
)

// Event types sent by the share page player.
const (
	EventStart    = "start"
	EventProgress = "progress"
	EventEnd      = "end"

	dropOffBuckets = 10
)

// ErrInvalidEvent is returned for events with an unknown type or negative measures.
var ErrInvalidEvent = errors.New("invalid analytics event")

// RecordingReader loads recordings for duration and view count.
type RecordingReader interface {
	Get(ctx context.Context, id string) (*models.Recording, error)
}

// Event is a player heartbeat for one viewing session.
type Event struct {
	SessionID      string  `json:"session_id"`
	ViewerID       string  `json:"viewer_id"`
	Type           string  `json:"type"`
	Position       float64 `json:"position"`
	WatchedSeconds float64 `json:"watched_seconds"`
}

// Ledger aggregates watch progress per viewer session. It shares the document store
// with the recordings ledger but never touches recording state.
type Ledger struct {
	store      Store
	recordings RecordingReader
	logger     *zap.Logger
	now        func() time.Time
}

// NewLedger creates an analytics ledger.
func NewLedger(store Store, recordings RecordingReader, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:      store,
		recordings: recordings,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Record folds ev into its session. A start event without a session id opens a new session.
func (l *Ledger) Record(ctx context.Context, recordingID string, ev Event) (*models.ViewerSession, error) {
	switch ev.Type {
	case EventStart, EventProgress, EventEnd:
	default:
		return nil, ErrInvalidEvent
	}
	if ev.Position < 0 || ev.WatchedSeconds < 0 || math.IsNaN(ev.Position) || math.IsNaN(ev.WatchedSeconds) {
		return nil, ErrInvalidEvent
	}
	rec, err := l.recordings.Get(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	sessionID := strings.TrimSpace(ev.SessionID)
	if sessionID == "" {
		if ev.Type != EventStart {
			return nil, ErrInvalidEvent
		}
		sessionID = uuid.NewString()
	}
	viewerID := strings.TrimSpace(ev.ViewerID)
	if viewerID == "" {
		viewerID = sessionID
	}

	s, err := l.store.Upsert(ctx, Progress{
		SessionID:      sessionID,
		RecordingID:    rec.ID,
		ViewerID:       viewerID,
		WatchedSeconds: ev.WatchedSeconds,
		Position:       ev.Position,
		CompletionRate: completion(ev.Position, rec.Duration),
		Ended:          ev.Type == EventEnd,
		At:             l.now(),
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Summary aggregates every session of a recording.
func (l *Ledger) Summary(ctx context.Context, recordingID string) (*models.RecordingAnalytics, error) {
	rec, err := l.recordings.Get(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	sessions, err := l.store.ListByRecording(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	out := Aggregate(rec.ID, rec.ViewCount, sessions)
	return &out, nil
}

// Aggregate summarises sessions. Drop-off buckets are 10% wide; a fully watched session lands in the last one.
func Aggregate(recordingID string, viewCount int64, sessions []models.ViewerSession) models.RecordingAnalytics {
	out := models.RecordingAnalytics{
		RecordingID: recordingID,
		ViewCount:   viewCount,
		Sessions:    len(sessions),
		DropOff:     make([]models.DropOffBucket, dropOffBuckets),
	}
	width := 100 / dropOffBuckets
	for i := range out.DropOff {
		out.DropOff[i] = models.DropOffBucket{FromPercent: i * width, ToPercent: (i + 1) * width}
	}
	if len(sessions) == 0 {
		return out
	}

	viewers := make(map[string]struct{}, len(sessions))
	var watched, completionSum float64
	for _, s := range sessions {
		viewers[s.ViewerID] = struct{}{}
		watched += s.WatchedSeconds
		completionSum += s.CompletionRate
		idx := int(s.CompletionRate / float64(width))
		if idx >= dropOffBuckets {
			idx = dropOffBuckets - 1
		}
		if idx < 0 {
			idx = 0
		}
		out.DropOff[idx].Sessions++
	}
	n := float64(len(sessions))
	out.UniqueViewers = len(viewers)
	out.AvgWatchSeconds = watched / n
	out.AvgCompletionRate = completionSum / n
	return out
}

// completion is the share of the recording reached, in percent.
func completion(position, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return math.Min(100, 100*position/duration)
}
