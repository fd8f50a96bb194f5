// Package httprange resolves HTTP Range request headers against a known
// object size. Only single-range forms are honored; multi-range requests
// degrade to full-object semantics as a deliberate simplification.
package httprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsatisfiable marks a syntactically valid range that cannot be served
// from the object. Callers answer it with a 416 and the object's total size.
var ErrUnsatisfiable = errors.New("range not satisfiable")

// Spec is a resolved byte span. Start and End are inclusive and always
// satisfy 0 <= Start <= End < Total when Total > 0.
type Spec struct {
	Start   int64
	End     int64
	Total   int64
	Partial bool
}

// Length returns the number of bytes covered by the span.
func (s Spec) Length() int64 {
	if s.Total == 0 {
		return 0
	}
	return s.End - s.Start + 1
}

// ContentRange renders the Content-Range header value for a 206 response.
func (s Spec) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", s.Start, s.End, s.Total)
}

// UnsatisfiableContentRange renders the Content-Range value for a 416
// response so clients can retry with a valid span.
func UnsatisfiableContentRange(total int64) string {
	return fmt.Sprintf("bytes */%d", total)
}

func full(total int64) Spec {
	return Spec{Start: 0, End: total - 1, Total: total, Partial: false}
}

// Resolve parses a raw Range header value against the object's total size.
//
// Supported forms: "bytes=a-b", "bytes=a-" (to end of object) and "bytes=-n"
// (last n bytes). An absent, malformed, or multi-range header yields the
// full-object spec rather than an error. End positions past the object are
// clamped; a span that is empty after clamping returns ErrUnsatisfiable.
func Resolve(header string, total int64) (Spec, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return full(total), nil
	}

	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return full(total), nil
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if raw == "" || strings.Contains(raw, ",") {
		return full(total), nil
	}

	dash := strings.Index(raw, "-")
	if dash < 0 {
		return full(total), nil
	}
	startPart := strings.TrimSpace(raw[:dash])
	endPart := strings.TrimSpace(raw[dash+1:])

	if startPart == "" && endPart == "" {
		return full(total), nil
	}

	if startPart == "" {
		// Suffix form: last n bytes.
		n, err := strconv.ParseInt(endPart, 10, 64)
		if err != nil || n <= 0 {
			return full(total), nil
		}
		if total <= 0 {
			return Spec{}, ErrUnsatisfiable
		}
		start := total - n
		if start < 0 {
			start = 0
		}
		return Spec{Start: start, End: total - 1, Total: total, Partial: true}, nil
	}

	start, err := strconv.ParseInt(startPart, 10, 64)
	if err != nil || start < 0 {
		return full(total), nil
	}

	end := total - 1
	if endPart != "" {
		parsed, err := strconv.ParseInt(endPart, 10, 64)
		if err != nil || parsed < 0 {
			return full(total), nil
		}
		end = parsed
	}

	if end >= total {
		end = total - 1
	}
	if start > end {
		return Spec{}, ErrUnsatisfiable
	}

	return Spec{Start: start, End: end, Total: total, Partial: true}, nil
}
