package models

import "time"

// SettingsKey is the well-known key of the settings singleton.
const SettingsKey = "global"

// Capture quality presets.
const (
	QualityLow    = "720p"
	QualityMedium = "1080p"
	QualityHigh   = "1440p"
)

// Settings is the global configuration record. Recordings snapshot DestinationFolderRef at creation.
type Settings struct {
	DestinationFolderRef string    `json:"destination_folder_ref"`
	DefaultQuality       string    `json:"default_quality"`
	DefaultMicEnabled    bool      `json:"default_mic_enabled"`
	DefaultWebcamEnabled bool      `json:"default_webcam_enabled"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DefaultSettings is returned before the singleton is first written.
func DefaultSettings() Settings {
	return Settings{
		DefaultQuality:       QualityMedium,
		DefaultMicEnabled:    true,
		DefaultWebcamEnabled: false,
	}
}

// ValidQuality reports whether q is a known capture preset.
func ValidQuality(q string) bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh:
		return true
	}
	return false
}
