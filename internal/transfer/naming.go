package transfer

import (
	"errors"
	"mime"
	"path"
	"strings"
	"unicode"
)

const (
	// HoldingPrefix is the holding-area folder for two-hop uploads.
	HoldingPrefix = "uploads"
	// DefaultContentType is assumed when the client sends none.
	DefaultContentType = "video/webm"

	maxTitleLen = 80
)

// HoldingPath returns the holding-area object path of a recording: uploads/<id>.webm.
func HoldingPath(id string) string {
	return path.Join(HoldingPrefix, id+".webm")
}

// SanitizeTitle reduces title to [A-Za-z0-9_-], turning whitespace runs into a single underscore.
func SanitizeTitle(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(title) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-', r == '_':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSep = true
		}
		if b.Len() >= maxTitleLen {
			break
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "recording"
	}
	return out
}

// FileName is the final-store name: sanitized title suffixed with the id, so duplicate titles stay unique.
func FileName(title, id, contentType string) string {
	return SanitizeTitle(title) + "-" + id + Extension(contentType)
}

// Extension returns the file extension for a video MIME type, .webm by default.
func Extension(contentType string) string {
	mt, _ := mediaType(contentType)
	switch mt {
	case "video/webm", "audio/webm":
		return ".webm"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/x-matroska":
		return ".mkv"
	}
	return ".webm"
}

// NormalizeContentType returns the media type of contentType, or DefaultContentType.
func NormalizeContentType(contentType string) string {
	mt, params := mediaType(contentType)
	if mt == "" || mt == "application/octet-stream" {
		return DefaultContentType
	}
	if codecs, ok := params["codecs"]; ok {
		return mime.FormatMediaType(mt, map[string]string{"codecs": codecs})
	}
	return mt
}

// mediaType tolerates the unquoted codec lists MediaRecorder emits (video/webm;codecs=vp9,opus).
func mediaType(contentType string) (string, map[string]string) {
	mt, params, err := mime.ParseMediaType(contentType)
	if errors.Is(err, mime.ErrInvalidMediaParameter) {
		return mt, nil
	}
	if err != nil {
		return "", nil
	}
	return mt, params
}
