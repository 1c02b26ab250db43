package models

import "time"

// RecordingStatus is the lifecycle state of a recording.
type RecordingStatus string

// RecordingStatus values. Ready and error are terminal; only a client retry leaves error.
const (
	RecordingStatusProcessing RecordingStatus = "processing"
	RecordingStatusUploading  RecordingStatus = "uploading"
	RecordingStatusReady      RecordingStatus = "ready"
	RecordingStatusError      RecordingStatus = "error"
)

// Valid reports whether s is a known status.
func (s RecordingStatus) Valid() bool {
	switch s {
	case RecordingStatusProcessing, RecordingStatusUploading, RecordingStatusReady, RecordingStatusError:
		return true
	}
	return false
}

// Terminal reports whether s is ready or error.
func (s RecordingStatus) Terminal() bool {
	return s == RecordingStatusReady || s == RecordingStatusError
}

// Recording is one screen capture and its upload lifecycle (client → holding area → final store).
type Recording struct {
	ID                   string          `json:"id"`
	Title                string          `json:"title"`
	Status               RecordingStatus `json:"status"`
	FinalFileRef         string          `json:"final_file_ref,omitempty"`
	DestinationFolderRef string          `json:"destination_folder_ref"`
	HoldingPath          string          `json:"holding_path,omitempty"`
	Duration             float64         `json:"duration"`
	FileSize             int64           `json:"file_size"`
	ViewCount            int64           `json:"view_count"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// StatusView is the polling payload for a recording.
type StatusView struct {
	Status       RecordingStatus `json:"status"`
	FinalFileRef string          `json:"final_file_ref"`
}

// StatusView returns the status/finalFileRef pair clients poll for.
func (r *Recording) StatusView() StatusView {
	return StatusView{Status: r.Status, FinalFileRef: r.FinalFileRef}
}

// SharePath is the public link for a recording. It is valid from creation and resolves once ready.
func SharePath(id string) string {
	return "/share/" + id
}
