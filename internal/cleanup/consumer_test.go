package cleanup

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/jordanvela/cliphive-backend/pkg/logger"
	"github.com/jordanvela/cliphive-backend/pkg/storage/blob"
)

type stubBlobDeleter struct {
	keys []string
	err  error
}

func (s *stubBlobDeleter) Delete(ctx context.Context, key string) error {
	s.keys = append(s.keys, key)
	return s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cleanup-test"})
}

func buildMessage(t *testing.T, event Event) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &pubsub.Message{
		Attributes: map[string]string{"event_type": eventTypeBlobDeleted},
		Data:       data,
	}
}

func newTestConsumer(store blobDeleter) *Consumer {
	return &Consumer{store: store, logg: testLogger()}
}

func TestConsumerDeletesBlob(t *testing.T) {
	t.Parallel()

	store := &stubBlobDeleter{}
	c := newTestConsumer(store)

	msg := buildMessage(t, Event{
		VideoID:   uuid.New(),
		ObjectKey: "videos/abc.mp4",
		DeletedAt: time.Now().UTC(),
	})

	result := c.process(context.Background(), msg)
	if !result.ack {
		t.Fatal("expected ack")
	}
	if len(store.keys) != 1 || store.keys[0] != "videos/abc.mp4" {
		t.Fatalf("unexpected delete calls %v", store.keys)
	}
}

func TestConsumerAcksMissingBlob(t *testing.T) {
	t.Parallel()

	store := &stubBlobDeleter{err: blob.ErrNotFound}
	c := newTestConsumer(store)

	msg := buildMessage(t, Event{VideoID: uuid.New(), ObjectKey: "videos/gone.mp4"})
	result := c.process(context.Background(), msg)
	if !result.ack {
		t.Fatal("missing blob must ack, delete is idempotent")
	}
}

func TestConsumerNacksTransientFailure(t *testing.T) {
	t.Parallel()

	store := &stubBlobDeleter{err: blob.ErrUnavailable}
	c := newTestConsumer(store)

	msg := buildMessage(t, Event{VideoID: uuid.New(), ObjectKey: "videos/slow.mp4"})
	result := c.process(context.Background(), msg)
	if !result.nack {
		t.Fatal("transient store failure must nack for redelivery")
	}
}

func TestConsumerSkipsUnrelatedAndMalformed(t *testing.T) {
	t.Parallel()

	store := &stubBlobDeleter{}
	c := newTestConsumer(store)

	unrelated := &pubsub.Message{
		Attributes: map[string]string{"event_type": "SOMETHING_ELSE"},
		Data:       []byte(`{}`),
	}
	if result := c.process(context.Background(), unrelated); !result.ack {
		t.Fatal("unrelated events must ack")
	}

	malformed := &pubsub.Message{
		Attributes: map[string]string{"event_type": eventTypeBlobDeleted},
		Data:       []byte(`{not json`),
	}
	if result := c.process(context.Background(), malformed); !result.ack {
		t.Fatal("malformed events must ack, redelivery cannot fix them")
	}

	empty := buildMessage(t, Event{VideoID: uuid.New()})
	if result := c.process(context.Background(), empty); !result.ack {
		t.Fatal("events without an object key must ack")
	}

	if len(store.keys) != 0 {
		t.Fatalf("no deletes expected, got %v", store.keys)
	}
}
