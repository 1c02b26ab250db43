package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestTrimToRange(t *testing.T) {
	tests := []struct {
		name string
		r    ByteRange
		want string
	}{
		{name: "bounded", r: ByteRange{Start: 2, End: 5}, want: "2345"},
		{name: "open ended", r: ByteRange{Start: 7, End: -1}, want: "789"},
		{name: "suffix past end", r: ByteRange{Start: 8, End: 20}, want: "89"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := &closeTracker{Reader: strings.NewReader("0123456789")}
			rc, err := trimToRange(body, tt.r)
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
			require.NoError(t, rc.Close())
			assert.True(t, body.closed)
		})
	}
}

func TestTrimToRange_StartBeyondBody(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader("0123")}
	_, err := trimToRange(body, ByteRange{Start: 10, End: 12})
	require.Error(t, err)
	assert.True(t, body.closed)
}

func TestMemory_StatKeepsContentType(t *testing.T) {
	m := NewMemory("holding")
	ctx := context.Background()
	_, err := m.Stat(ctx, "uploads/abc12345.webm")
	require.ErrorIs(t, err, ErrNotFound)

	m.PutObject("uploads/abc12345.webm", "video/mp4", []byte("bytes"))
	info, err := m.Stat(ctx, "uploads/abc12345.webm")
	require.NoError(t, err)
	assert.Equal(t, ObjectInfo{Size: 5, ContentType: "video/mp4"}, info)
}

func TestFolderKey(t *testing.T) {
	assert.Equal(t, "F1/Demo-abc12345.webm", FolderKey("/F1/", "Demo-abc12345.webm"))
	assert.Equal(t, "Demo-abc12345.webm", FolderKey("", "../Demo-abc12345.webm"))
}
