// Package storage wraps the object stores recordings pass through: a holding area the browser
// uploads to with a signed URL, and the final store viewers stream from.
package storage

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo is the metadata of a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ByteRange is an inclusive byte range. End < 0 means "to the end of the object".
type ByteRange struct {
	Start int64
	End   int64
}

// Full is the range covering the whole object.
var Full = ByteRange{Start: 0, End: -1}

// IsFull reports whether r covers the whole object.
func (r ByteRange) IsFull() bool { return r.Start == 0 && r.End < 0 }

// Header renders r as an HTTP Range header value.
func (r ByteRange) Header() string {
	if r.End < 0 {
		return fmt.Sprintf("bytes=%d-", r.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

type trimmedBody struct {
	io.Reader
	io.Closer
}

// trimToRange cuts a full-object body down to r, for backends that answer a range request with 200.
func trimToRange(body io.ReadCloser, r ByteRange) (io.ReadCloser, error) {
	if r.Start > 0 {
		if _, err := io.CopyN(io.Discard, body, r.Start); err != nil {
			_ = body.Close()
			return nil, fmt.Errorf("skip to range start: %w", err)
		}
	}
	if r.End < 0 {
		return body, nil
	}
	return trimmedBody{Reader: io.LimitReader(body, r.End-r.Start+1), Closer: body}, nil
}

// FolderKey joins a destination folder and a file name into an object key.
func FolderKey(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return path.Base(name)
	}
	return path.Join(folder, path.Base(name))
}
