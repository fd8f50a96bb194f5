package cleanup

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/jordanvela/cliphive-backend/pkg/logger"
	"github.com/jordanvela/cliphive-backend/pkg/storage/blob"
)

type blobDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Consumer watches the cleanup subscription and deletes orphaned blobs.
type Consumer struct {
	store        blobDeleter
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

type processResult struct {
	ack  bool
	nack bool
}

// NewConsumer wires the dependencies required for blob cleanup.
func NewConsumer(store blobDeleter, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if subscription == nil {
		return nil, errors.New("cleanup subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{store: store, subscription: subscription, logg: logg}, nil
}

// Run processes cleanup events until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	if eventType := msg.Attributes["event_type"]; eventType != eventTypeBlobDeleted {
		c.logg.Info(c.logg.WithField(logCtx, "event_type", eventType), "skipping unrelated event")
		return processResult{ack: true}
	}

	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode cleanup event", err)
		return processResult{ack: true}
	}
	if event.ObjectKey == "" {
		c.logg.Error(logCtx, "cleanup event missing object key", errors.New("empty object_key"))
		return processResult{ack: true}
	}

	logCtx = c.logg.WithObjectKey(c.logg.WithVideoID(logCtx, event.VideoID.String()), event.ObjectKey)

	err := c.store.Delete(ctx, event.ObjectKey)
	switch {
	case err == nil, errors.Is(err, blob.ErrNotFound):
		c.logg.Info(logCtx, "blob cleanup complete")
		return processResult{ack: true}
	case errors.Is(err, blob.ErrUnavailable):
		// Transient store failure: redeliver.
		c.logg.Warn(logCtx, "blob store unavailable, retrying cleanup")
		return processResult{nack: true}
	default:
		c.logg.Error(logCtx, "blob cleanup failed", err)
		return processResult{nack: true}
	}
}
