// Package cleanup carries blob-cleanup events between the API and the
// worker. The API deletes blobs inline best-effort; the event stream is the
// durable backstop that guarantees orphaned blobs eventually go away.
package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const eventTypeBlobDeleted = "BLOB_DELETED"

// Event is the wire payload published when a video's blob should be removed.
type Event struct {
	VideoID   uuid.UUID `json:"video_id"`
	ObjectKey string    `json:"object_key"`
	DeletedAt time.Time `json:"deleted_at"`
}

type publisherHandle interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// Publisher emits blob-cleanup events to the configured topic.
type Publisher struct {
	topic publisherHandle
}

// NewPublisher wires the cleanup publisher to a Pub/Sub topic handle.
func NewPublisher(topic *pubsub.Publisher) (*Publisher, error) {
	if topic == nil {
		return nil, errors.New("cleanup topic publisher is required")
	}
	return &Publisher{topic: topic}, nil
}

// PublishBlobDeleted emits a cleanup event and waits for the broker ack.
func (p *Publisher) PublishBlobDeleted(ctx context.Context, videoID uuid.UUID, objectKey string) error {
	if objectKey == "" {
		return errors.New("object key is required")
	}
	payload, err := json.Marshal(Event{
		VideoID:   videoID,
		ObjectKey: objectKey,
		DeletedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding cleanup event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"event_type": eventTypeBlobDeleted},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publishing cleanup event: %w", err)
	}
	return nil
}
