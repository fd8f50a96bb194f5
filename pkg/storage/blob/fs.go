package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/jordanvela/cliphive-backend/pkg/httprange"
)

const metaSuffix = ".meta"

// FSStore keeps objects on the local filesystem. Each object is a data file
// plus a sidecar JSON file recording the content type fixed at write time.
// Intended for development and tests; the production backend is GCSStore.
type FSStore struct {
	root string
}

type fsMeta struct {
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewFSStore creates the root directory if needed and returns the store.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("fs store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating fs store root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) dataPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *FSStore) metaPath(key string) string {
	return s.dataPath(key) + metaSuffix
}

// Put writes the payload under a generated key. The data file lands via a
// temp file and rename so a crashed write never leaves a readable object.
func (s *FSStore) Put(ctx context.Context, contentType, fileName string, r io.Reader) (Object, error) {
	return s.PutKey(ctx, NewKey(fileName), contentType, r)
}

// PutKey writes the payload under a previously issued key.
func (s *FSStore) PutKey(ctx context.Context, key, contentType string, r io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if err := ValidateKey(key); err != nil {
		return Object{}, err
	}
	dataPath := s.dataPath(key)
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return Object{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Object{}, fmt.Errorf("writing object payload: %w", err)
	}

	createdAt := time.Now().UTC()
	meta := fsMeta{ContentType: contentType, SizeBytes: size, CreatedAt: createdAt}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return Object{}, fmt.Errorf("encoding object meta: %w", err)
	}
	if err := os.WriteFile(s.metaPath(key), metaBytes, 0o644); err != nil {
		return Object{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		_ = os.Remove(s.metaPath(key))
		return Object{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return Object{Key: key, SizeBytes: size, ContentType: contentType, CreatedAt: createdAt}, nil
}

// Stat reads the sidecar meta; when only the data file survives the content
// type falls back to the key's extension.
func (s *FSStore) Stat(ctx context.Context, key string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	if err := ValidateKey(key); err != nil {
		return Info{}, ErrNotFound
	}

	fi, err := os.Stat(s.dataPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, ErrNotFound
		}
		return Info{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	info := Info{SizeBytes: fi.Size()}
	raw, err := os.ReadFile(s.metaPath(key))
	if err == nil {
		var meta fsMeta
		if jsonErr := json.Unmarshal(raw, &meta); jsonErr == nil && meta.ContentType != "" {
			info.ContentType = meta.ContentType
		}
	}
	if info.ContentType == "" {
		info.ContentType = mime.TypeByExtension(filepath.Ext(key))
	}
	if info.ContentType == "" {
		info.ContentType = "application/octet-stream"
	}
	return info, nil
}

// OpenRange seeks to the span start and bounds the reader to the span length.
func (s *FSStore) OpenRange(ctx context.Context, key string, spec httprange.Spec) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if err := ValidateKey(key); err != nil {
		return nil, 0, ErrNotFound
	}

	f, err := os.Open(s.dataPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err := f.Seek(spec.Start, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	length := spec.Length()
	return &boundedReadCloser{r: io.LimitReader(f, length), c: f}, length, nil
}

// Delete removes data and meta files; a missing object is success.
func (s *FSStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return nil
	}
	if err := os.Remove(s.dataPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Remove(s.metaPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping verifies the root directory is still present and writable.
func (s *FSStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fi, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("fs store root %q is not a directory", s.root)
	}
	return nil
}

type boundedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (b *boundedReadCloser) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *boundedReadCloser) Close() error               { return b.c.Close() }
