package models

import "time"

// ViewerSession tracks one viewing session of a recording (join/progress/leave).
type ViewerSession struct {
	SessionID      string     `json:"session_id"`
	RecordingID    string     `json:"recording_id"`
	ViewerID       string     `json:"viewer_id"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	WatchedSeconds float64    `json:"watched_seconds"`
	MaxPosition    float64    `json:"max_position"`
	CompletionRate float64    `json:"completion_rate"` // percent, 0-100
	EventCount     int        `json:"event_count"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DropOffBucket counts sessions whose furthest position fell in [FromPercent, ToPercent).
type DropOffBucket struct {
	FromPercent int `json:"from_percent"`
	ToPercent   int `json:"to_percent"`
	Sessions    int `json:"sessions"`
}

// RecordingAnalytics is the aggregated viewing summary for a recording.
type RecordingAnalytics struct {
	RecordingID       string          `json:"recording_id"`
	ViewCount         int64           `json:"view_count"`
	Sessions          int             `json:"sessions"`
	UniqueViewers     int             `json:"unique_viewers"`
	AvgWatchSeconds   float64         `json:"avg_watch_seconds"`
	AvgCompletionRate float64         `json:"avg_completion_rate"`
	DropOff           []DropOffBucket `json:"drop_off"`
}
