// Package httprange parses single byte-range requests for media streaming.
package httprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalid is returned for malformed or unsatisfiable ranges (416).
	ErrInvalid = errors.New("invalid range")
	// ErrMultiRange is returned for multipart range requests, which are not served.
	ErrMultiRange = errors.New("multi-range not supported")
)

// Range is an inclusive byte range [Start, End].
type Range struct {
	Start int64
	End   int64
}

// Length returns the number of bytes covered.
func (r Range) Length() int64 { return r.End - r.Start + 1 }

// Parse parses a Range header against a resource of size bytes.
// Suffix ranges (bytes=-N) and open ranges (bytes=N-) are supported; End is clamped to size-1.
func Parse(header string, size int64) (Range, error) {
	const prefix = "bytes="
	if size <= 0 || !strings.HasPrefix(header, prefix) {
		return Range{}, ErrInvalid
	}
	rng := strings.TrimPrefix(header, prefix)
	if strings.Contains(rng, ",") {
		return Range{}, ErrMultiRange
	}
	startStr, endStr, ok := strings.Cut(rng, "-")
	if !ok {
		return Range{}, ErrInvalid
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return Range{}, ErrInvalid
		}
		if n > size {
			n = size
		}
		return Range{Start: size - n, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return Range{}, ErrInvalid
	}
	r := Range{Start: start, End: size - 1}
	if endStr != "" {
		end, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return Range{}, ErrInvalid
		}
		if end < size {
			r.End = end
		}
	}
	return r, nil
}

// ContentRange formats the Content-Range header of a 206 response.
func ContentRange(r Range, size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// Unsatisfied formats the Content-Range header of a 416 response.
func Unsatisfied(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}
