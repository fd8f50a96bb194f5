package blob

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jordanvela/cliphive-backend/pkg/httprange"
)

func newTestGCSStore(t *testing.T, srv *httptest.Server) *GCSStore {
	t.Helper()
	return &GCSStore{
		httpClient: srv.Client(),
		bucket:     "clips",
		host:       srv.URL,
		tokenSource: &tokenSource{
			token:  "test-token",
			expiry: time.Now().Add(time.Hour),
		},
	}
}

func TestGCSOpenRangeHonorsSpanOnFullResponse(t *testing.T) {
	t.Parallel()

	payload := "0123456789"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Ignore the Range header and answer with the whole object.
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, payload)
	}))
	defer srv.Close()

	store := newTestGCSStore(t, srv)
	spec := httprange.Spec{Start: 4, End: 7, Total: 10, Partial: true}

	body, length, err := store.OpenRange(context.Background(), "videos/full.mp4", spec)
	if err != nil {
		t.Fatalf("open range: %v", err)
	}
	defer body.Close()

	if length != 4 {
		t.Fatalf("expected length 4, got %d", length)
	}
	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(got) != "4567" {
		t.Fatalf("expected bytes 4-7 %q, got %q", "4567", string(got))
	}
}

func TestGCSOpenRangePassesPartialResponseThrough(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Range"); got != "bytes=4-7" {
			t.Errorf("expected Range bytes=4-7, got %q", got)
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = io.WriteString(w, "4567")
	}))
	defer srv.Close()

	store := newTestGCSStore(t, srv)
	spec := httprange.Spec{Start: 4, End: 7, Total: 10, Partial: true}

	body, length, err := store.OpenRange(context.Background(), "videos/partial.mp4", spec)
	if err != nil {
		t.Fatalf("open range: %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(got) != "4567" || length != 4 {
		t.Fatalf("unexpected span %q (length %d)", string(got), length)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestGCSPutKeyPreservesPayloadCeilingError(t *testing.T) {
	t.Parallel()

	store := &GCSStore{
		httpClient: &http.Client{
			Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
				_, err := io.Copy(io.Discard, r.Body)
				return nil, err
			}),
		},
		bucket: "clips",
		tokenSource: &tokenSource{
			token:  "test-token",
			expiry: time.Now().Add(time.Hour),
		},
	}

	oversized := http.MaxBytesReader(nil, io.NopCloser(strings.NewReader("way past the cap")), 4)
	_, err := store.PutKey(context.Background(), "videos/big.mp4", "video/mp4", oversized)
	if err == nil {
		t.Fatal("expected error from capped payload")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected transport failure classification, got %v", err)
	}
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		t.Fatalf("payload cap must stay visible in the chain, got %v", err)
	}
}
