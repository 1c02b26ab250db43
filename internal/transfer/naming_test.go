package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Demo", "Demo"},
		{"  Q3   planning call ", "Q3_planning_call"},
		{"bug #42: crash/on save", "bug_42_crashon_save"},
		{"résumé walkthrough", "rsum_walkthrough"},
		{"---", "recording"},
		{"", "recording"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeTitle(tt.in), tt.in)
	}
}

func TestFileName_UniquePerID(t *testing.T) {
	a := FileName("Demo", "aaaa1111", "video/webm")
	b := FileName("Demo", "bbbb2222", "video/webm")
	assert.Equal(t, "Demo-aaaa1111.webm", a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, "Demo-aaaa1111.mp4", FileName("Demo", "aaaa1111", "video/mp4"))
}

func TestHoldingPath(t *testing.T) {
	assert.Equal(t, "uploads/abc12345.webm", HoldingPath("abc12345"))
}

func TestNormalizeContentType(t *testing.T) {
	assert.Equal(t, DefaultContentType, NormalizeContentType(""))
	assert.Equal(t, DefaultContentType, NormalizeContentType("application/octet-stream"))
	assert.Equal(t, "video/mp4", NormalizeContentType("video/mp4"))
	assert.Equal(t, "video/webm", NormalizeContentType("video/webm;codecs=vp9,opus"))
	assert.Equal(t, `video/webm; codecs="vp8, opus"`, NormalizeContentType(`video/webm; codecs="vp8, opus"`))
	assert.Equal(t, ".mp4", Extension("video/mp4; codecs=avc1"))
}
