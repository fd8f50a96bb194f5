package httprange

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveNoHeaderIsFullObject(t *testing.T) {
	t.Parallel()

	spec, err := Resolve("", 1000)
	require.NoError(t, err)
	require.False(t, spec.Partial)
	require.Equal(t, int64(0), spec.Start)
	require.Equal(t, int64(999), spec.End)
	require.Equal(t, int64(1000), spec.Length())
}

func TestResolveSingleRangeForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		total  int64
		start  int64
		end    int64
	}{
		{name: "bounded", header: "bytes=0-499", total: 1000, start: 0, end: 499},
		{name: "open ended", header: "bytes=500-", total: 1000, start: 500, end: 999},
		{name: "suffix", header: "bytes=-200", total: 1000, start: 800, end: 999},
		{name: "suffix larger than object", header: "bytes=-5000", total: 1000, start: 0, end: 999},
		{name: "end clamped", header: "bytes=500-9999", total: 1000, start: 500, end: 999},
		{name: "single byte", header: "bytes=42-42", total: 1000, start: 42, end: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Resolve(tt.header, tt.total)
			require.NoError(t, err)
			require.True(t, spec.Partial)
			require.Equal(t, tt.start, spec.Start)
			require.Equal(t, tt.end, spec.End)
			require.Equal(t, tt.total, spec.Total)
		})
	}
}

func TestResolveDegradesToFullObject(t *testing.T) {
	t.Parallel()

	headers := []string{
		"bits=0-10",
		"bytes=abc-def",
		"bytes=0-10,20-30",
		"bytes=-",
		"bytes=",
		"bytes=10",
		"garbage",
	}

	for _, header := range headers {
		spec, err := Resolve(header, 1000)
		require.NoError(t, err, "header %q", header)
		require.False(t, spec.Partial, "header %q", header)
		require.Equal(t, int64(0), spec.Start)
		require.Equal(t, int64(999), spec.End)
	}
}

func TestResolveUnsatisfiable(t *testing.T) {
	t.Parallel()

	_, err := Resolve("bytes=2000-3000", 1000)
	require.ErrorIs(t, err, ErrUnsatisfiable)

	_, err = Resolve("bytes=1000-", 1000)
	require.ErrorIs(t, err, ErrUnsatisfiable)

	_, err = Resolve("bytes=0-", 0)
	if !errors.Is(err, ErrUnsatisfiable) {
		t.Fatalf("expected unsatisfiable for empty object, got %v", err)
	}
}

func TestContentRangeRendering(t *testing.T) {
	t.Parallel()

	spec, err := Resolve("bytes=500-", 1000)
	require.NoError(t, err)
	require.Equal(t, "bytes 500-999/1000", spec.ContentRange())
	require.Equal(t, int64(500), spec.Length())
	require.Equal(t, "bytes */1000", UnsatisfiableContentRange(1000))
}
