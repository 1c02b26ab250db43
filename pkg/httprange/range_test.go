package httprange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		header string
		size   int64
		want   Range
		err    error
	}{
		{"closed", "bytes=0-99", 1000, Range{0, 99}, nil},
		{"open", "bytes=500-", 1000, Range{500, 999}, nil},
		{"suffix", "bytes=-100", 1000, Range{900, 999}, nil},
		{"suffix larger than size", "bytes=-5000", 1000, Range{0, 999}, nil},
		{"end clamped", "bytes=900-5000", 1000, Range{900, 999}, nil},
		{"start past end", "bytes=1000-", 1000, Range{}, ErrInvalid},
		{"end before start", "bytes=10-5", 1000, Range{}, ErrInvalid},
		{"multi", "bytes=0-1,5-6", 1000, Range{}, ErrMultiRange},
		{"wrong unit", "items=0-1", 1000, Range{}, ErrInvalid},
		{"garbage", "bytes=a-b", 1000, Range{}, ErrInvalid},
		{"empty resource", "bytes=0-", 0, Range{}, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.header, tt.size)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContentRange(t *testing.T) {
	assert.Equal(t, "bytes 0-99/1000", ContentRange(Range{0, 99}, 1000))
	assert.Equal(t, "bytes */1000", Unsatisfied(1000))
	assert.Equal(t, int64(100), Range{0, 99}.Length())
}
