// Package blob is the gateway to the binary object store. Objects are
// immutable once written and addressed by opaque generated keys; callers
// never choose storage keys themselves.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/jordanvela/cliphive-backend/pkg/httprange"
)

var (
	// ErrNotFound marks a permanently missing object.
	ErrNotFound = errors.New("object not found")
	// ErrUnavailable marks a transient backend failure. Callers may retry
	// with bounded backoff; this package never retries internally.
	ErrUnavailable = errors.New("object store unavailable")
)

// Object is the storage-layer identity of one written payload.
type Object struct {
	Key         string
	SizeBytes   int64
	ContentType string
	CreatedAt   time.Time
}

// Info is the result of a stat call.
type Info struct {
	SizeBytes   int64
	ContentType string
}

// Store abstracts the binary object backend.
type Store interface {
	// Put streams the payload into the store under a freshly generated key
	// and returns the finalized object. The payload is consumed exactly once.
	Put(ctx context.Context, contentType, fileName string, r io.Reader) (Object, error)

	// PutKey streams the payload under a key issued earlier, for uploads
	// authorized ahead of time by a signed grant.
	PutKey(ctx context.Context, key, contentType string, r io.Reader) (Object, error)

	// Stat returns size and content type, or ErrNotFound.
	Stat(ctx context.Context, key string) (Info, error)

	// OpenRange opens a read stream covering exactly the resolved span. The
	// returned length is the number of bytes the stream will yield.
	OpenRange(ctx context.Context, key string, spec httprange.Spec) (io.ReadCloser, int64, error)

	// Delete removes the object. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewKey generates a collision-free storage key, keeping only the sanitized
// extension of the caller-supplied file name.
func NewKey(fileName string) string {
	ext := sanitizeExtension(fileName)
	return "videos/" + uuid.NewString() + ext
}

func sanitizeExtension(fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.TrimSpace(fileName))))
	if ext == "" || ext == "." {
		return ""
	}
	var b strings.Builder
	b.Grow(len(ext))
	for _, r := range ext {
		switch {
		case r == '.' && b.Len() == 0:
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	if b.Len() <= 1 {
		return ""
	}
	return b.String()
}

// ValidateKey rejects keys that could escape the store's namespace.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object key is required")
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
